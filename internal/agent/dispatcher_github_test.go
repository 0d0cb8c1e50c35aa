package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/github"
)

// githubDispatcher wires a real client against handler, with real sleeps.
func githubDispatcher(t *testing.T, handler http.HandlerFunc) *Dispatcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := github.New(github.Options{BaseURL: srv.URL, Token: "t", Timeout: 5 * time.Second}, silentLog())
	return NewDispatcher(client, DispatchOptions{MaxRetryWait: 5 * time.Second}, silentLog())
}

func TestDispatch_GitHubRetryAfterWaitReachesServer(t *testing.T) {
	var hits int32
	d := githubDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"number":1,"title":"Bug","state":"open","user":{"login":"ann"}}]`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := d.Dispatch(ctx, issuesIntent("acme", "widgets"), &domain.Session{ID: "s1"})

	assert.Equal(t, domain.StatusOK, res.Status)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestDispatch_GitHubResetWaitOutlastsReset(t *testing.T) {
	// Whole-second epoch between one and two seconds away, so the raw wait
	// has a fractional part.
	reset := time.Now().Truncate(time.Second).Add(2 * time.Second)

	var hits int32
	d := githubDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Resource", "core")
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
			return
		}
		w.Header().Set("X-RateLimit-Remaining", "59")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Add(time.Hour).Unix(), 10))
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := d.Dispatch(ctx, issuesIntent("acme", "widgets"), &domain.Session{ID: "s1"})

	require.Equal(t, domain.StatusOK, res.Status, res.Detail)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.False(t, time.Now().Before(reset))
}
