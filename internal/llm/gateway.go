package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/soyeahso/ghagent/internal/logging"
)

// ErrModelUnavailable is returned by Gateway.Generate once the model could
// not produce a response within the allowed attempts.
var ErrModelUnavailable = errors.New("language model unavailable")

// maxAttempts is the first call plus one retry.
const maxAttempts = 2

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	Model       string
	Timeout     time.Duration // per attempt, mandatory
	Backoff     time.Duration // wait before the retry
	Concurrency int           // simultaneous generations against the endpoint
	Temperature *float64
	MaxTokens   int
}

// Gateway sends prompts to one model endpoint. It applies a per-attempt
// timeout, retries once on transient failures, and queues callers so no
// more than Concurrency generations run at a time.
type Gateway struct {
	client Client
	opts   GatewayOptions
	slots  chan struct{}
	log    *logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGateway wraps client with the given options.
func NewGateway(client Client, opts GatewayOptions, log *logging.Logger) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Gateway{
		client: client,
		opts:   opts,
		slots:  make(chan struct{}, opts.Concurrency),
		log:    log.Sub("llm.gateway"),
		sleep:  sleepContext,
	}
}

// Provider returns the wrapped client's name.
func (g *Gateway) Provider() string { return g.client.Name() }

// Generate returns the model's complete text for prompt. Any failure after
// the retry budget satisfies errors.Is(err, ErrModelUnavailable).
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for model slot: %w", ErrModelUnavailable, ctx.Err())
	}
	defer func() { <-g.slots }()

	req := CompletionRequest{
		Model:       g.opts.Model,
		Prompt:      prompt,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := g.complete(ctx, req)
		if err == nil {
			g.log.Debug().
				Str("provider", g.client.Name()).
				Int("attempt", attempt).
				Dur("duration", resp.Duration).
				Int("outputTokens", resp.Usage.OutputTokens).
				Msg("generation complete")
			return resp.Content, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == maxAttempts {
			break
		}
		g.log.Warn().Err(err).Str("provider", g.client.Name()).Dur("backoff", g.opts.Backoff).Msg("generation failed, retrying")
		if err := g.sleep(ctx, g.opts.Backoff); err != nil {
			break
		}
	}

	g.log.Error().Err(lastErr).Str("provider", g.client.Name()).Msg("model unavailable")
	return "", fmt.Errorf("%w: %w", ErrModelUnavailable, lastErr)
}

func (g *Gateway) complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &ProviderError{Provider: g.client.Name(), Message: "empty response"}
	}
	return resp, nil
}

// isRetryable reports whether a failed generation is worth one more try:
// timeouts, connection failures, throttling and server errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 408, 429, 500, 502, 503, 504, 529:
			return true
		case 0:
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "eof")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
