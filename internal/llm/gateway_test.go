package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(client Client, opts GatewayOptions) (*Gateway, *[]time.Duration) {
	g := NewGateway(client, opts, silentLog())
	var waits []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return g, &waits
}

func TestGateway_Success(t *testing.T) {
	var calls int32
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "prompt", req.Prompt)
			assert.Equal(t, "qwen", req.Model)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return &CompletionResponse{Content: "text"}, nil
		},
	}
	g, waits := newTestGateway(mock, GatewayOptions{Model: "qwen", Timeout: time.Second})

	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.Equal(t, int32(1), calls)
	assert.Empty(t, *waits)
	assert.Equal(t, "mock", g.Provider())
}

func TestGateway_RetriesOnceThenSucceeds(t *testing.T) {
	var calls int32
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, &ProviderError{Provider: "mock", Message: "busy", Code: 503}
			}
			return &CompletionResponse{Content: "second"}, nil
		},
	}
	g, waits := newTestGateway(mock, GatewayOptions{Timeout: time.Second, Backoff: 250 * time.Millisecond})

	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "second", out)
	assert.Equal(t, int32(2), calls)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, *waits)
}

func TestGateway_UnavailableAfterRetry(t *testing.T) {
	var calls int32
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			atomic.AddInt32(&calls, 1)
			return nil, &ProviderError{Provider: "mock", Message: "down", Code: 500}
		},
	}
	g, _ := newTestGateway(mock, GatewayOptions{Timeout: time.Second})

	out, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(2), calls)

	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
}

func TestGateway_NoRetryOnClientError(t *testing.T) {
	var calls int32
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			atomic.AddInt32(&calls, 1)
			return nil, &ProviderError{Provider: "mock", Message: "model not found", Code: 404}
		},
	}
	g, _ := newTestGateway(mock, GatewayOptions{Timeout: time.Second})

	_, err := g.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(1), calls)
}

func TestGateway_TimeoutPerAttempt(t *testing.T) {
	var calls int32
	mock := &MockClient{
		ProviderName: "slow",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			atomic.AddInt32(&calls, 1)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	g, _ := newTestGateway(mock, GatewayOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := g.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGateway_CallerCancelStopsRetry(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(c context.Context, req CompletionRequest) (*CompletionResponse, error) {
			atomic.AddInt32(&calls, 1)
			cancel()
			return nil, errors.New("connection reset by peer")
		},
	}
	g, _ := newTestGateway(mock, GatewayOptions{Timeout: time.Second})

	_, err := g.Generate(ctx, "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(1), calls)
}

func TestGateway_SerializesPerEndpoint(t *testing.T) {
	var inFlight, maxInFlight int32
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return &CompletionResponse{Content: "ok"}, nil
		},
	}
	g, _ := newTestGateway(mock, GatewayOptions{Timeout: time.Second, Concurrency: 1})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight)
}

func TestGateway_SlotWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			<-release
			return &CompletionResponse{Content: "ok"}, nil
		},
	}
	g, _ := newTestGateway(mock, GatewayOptions{Timeout: time.Second, Concurrency: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Generate(context.Background(), "first")
	}()
	require.Eventually(t, func() bool { return len(g.slots) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, "second")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	close(release)
	<-done
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", &ProviderError{Code: 429}, true},
		{"502", &ProviderError{Code: 502}, true},
		{"400", &ProviderError{Code: 400}, false},
		{"401", &ProviderError{Code: 401}, false},
		{"overloaded", errors.New("server overloaded"), true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("bad prompt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
