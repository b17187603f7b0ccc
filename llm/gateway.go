package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/mallchat/llm/retry"
	"github.com/BaSui01/mallchat/types"
)

// Observer receives per-call telemetry. Implemented by internal/metrics;
// declared here so llm does not depend on it.
type Observer interface {
	ObserveLLMRequest(provider, status string, duration time.Duration)
}

// Gateway wraps a Provider with retries, optional client-side rate limiting,
// and request defaults. All model calls in the module go through it.
type Gateway struct {
	provider Provider
	retryer  *retry.Retryer
	limiter  *rate.Limiter
	observer Observer
	logger   *zap.Logger

	model       string
	temperature float64
	maxTokens   int
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) GatewayOption {
	return func(g *Gateway) { g.retryer = retry.NewRetryer(p, g.logger) }
}

// WithRateLimit caps outgoing requests per second. Zero disables the limiter.
func WithRateLimit(rps float64) GatewayOption {
	return func(g *Gateway) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithObserver attaches a telemetry observer.
func WithObserver(o Observer) GatewayOption {
	return func(g *Gateway) { g.observer = o }
}

// WithDefaultModel sets the model used when a call does not name one.
func WithDefaultModel(model string) GatewayOption {
	return func(g *Gateway) { g.model = model }
}

// WithDefaults sets the default sampling parameters.
func WithDefaults(temperature float64, maxTokens int) GatewayOption {
	return func(g *Gateway) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// NewGateway creates a Gateway around provider.
func NewGateway(provider Provider, logger *zap.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		provider:    provider,
		logger:      logger.With(zap.String("component", "llm_gateway")),
		model:       "gpt-4o-mini",
		temperature: 0.3,
		maxTokens:   1024,
	}
	g.retryer = retry.NewRetryer(retry.DefaultPolicy(), g.logger)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CallOption adjusts a single request.
type CallOption func(*ChatRequest)

// WithModel overrides the model for one call.
func WithModel(model string) CallOption {
	return func(r *ChatRequest) { r.Model = model }
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float64) CallOption {
	return func(r *ChatRequest) { r.Temperature = t }
}

// WithMaxTokens overrides the completion budget for one call.
func WithMaxTokens(n int) CallOption {
	return func(r *ChatRequest) { r.MaxTokens = n }
}

// Generate runs a chat completion and returns the first choice's text.
func (g *Gateway) Generate(ctx context.Context, messages []Message, opts ...CallOption) (string, error) {
	req := &ChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	for _, opt := range opts {
		opt(req)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	start := time.Now()
	resp, err := retry.DoWithResult(ctx, g.retryer, func(ctx context.Context) (*ChatResponse, error) {
		return g.provider.Completion(ctx, req)
	})
	elapsed := time.Since(start)

	if g.observer != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		g.observer.ObserveLLMRequest(g.provider.Name(), status, elapsed)
	}

	if err != nil {
		g.logger.Error("completion failed",
			zap.String("provider", g.provider.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", types.NewError(types.ErrUpstreamError, "completion failed").
			WithProvider(g.provider.Name()).
			WithCause(err)
	}

	g.logger.Debug("completion ok",
		zap.String("provider", g.provider.Name()),
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", elapsed))

	return resp.Text(), nil
}

// ProviderName exposes the wrapped provider's name.
func (g *Gateway) ProviderName() string { return g.provider.Name() }
