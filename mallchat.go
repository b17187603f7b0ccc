// Package mallchat assembles the shopping-mall customer-service chatbot:
// an LLM-backed pipeline of intent classification, dynamic planning,
// sequential agent execution, and confirmation-gated refund processing over
// persistent per-session conversation state.
package mallchat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/agent"
	"github.com/BaSui01/mallchat/config"
	"github.com/BaSui01/mallchat/intent"
	"github.com/BaSui01/mallchat/internal/metrics"
	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/llm/providers/openai"
	"github.com/BaSui01/mallchat/llm/retry"
	"github.com/BaSui01/mallchat/orchestrator"
	"github.com/BaSui01/mallchat/plan"
	"github.com/BaSui01/mallchat/session"
	"github.com/BaSui01/mallchat/tools"
	"github.com/BaSui01/mallchat/types"
)

// Bot is the assembled chatbot.
type Bot struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	sessions *session.Service
	redis    *session.RedisStore // nil for the memory backend
	logger   *zap.Logger
}

// Option overrides a default collaborator.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	provider llm.Provider
}

// WithLogger supplies a logger instead of building one from the config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProvider swaps the LLM provider; used by tests and offline demos.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New wires the full chatbot from configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Bot, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = config.BuildLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	today, err := cfg.Today()
	if err != nil {
		return nil, fmt.Errorf("invalid current_date: %w", err)
	}

	provider := o.provider
	if provider == nil {
		switch cfg.LLM.Provider {
		case "openai":
			provider = openai.New(openai.Config{
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
				Timeout: cfg.LLM.Timeout,
			}, logger)
		default:
			return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
		}
	}

	var collector *metrics.Collector
	gatewayOpts := []llm.GatewayOption{
		llm.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.LLM.MaxRetries,
			Delay:       cfg.LLM.RetryDelay,
		}),
		llm.WithRateLimit(cfg.LLM.RateLimit),
		llm.WithDefaultModel(cfg.LLM.Model),
		llm.WithDefaults(cfg.LLM.Temperature, cfg.LLM.MaxTokens),
	}
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
		gatewayOpts = append(gatewayOpts, llm.WithObserver(collector))
	}
	gateway := llm.NewGateway(provider, logger, gatewayOpts...)

	history, err := tools.NewOrderHistory(logger)
	if err != nil {
		return nil, err
	}
	policy, err := tools.NewRefundPolicy()
	if err != nil {
		return nil, err
	}
	catalog, err := tools.NewCatalog()
	if err != nil {
		return nil, err
	}
	validator := tools.NewRefundValidator(history, policy, today, logger)
	calculator := tools.NewFeeCalculator(policy)
	processor := tools.NewProcessor(validator, calculator, time.Now, logger)

	registry, err := agent.NewRegistry(
		agent.NewOrderAgent(history, today, logger),
		agent.NewRefundAgent(gateway, history, policy, validator, calculator, logger),
		agent.NewGeneralAgent(gateway, catalog, logger),
		agent.NewRefundProcessorAgent(processor, logger),
	)
	if err != nil {
		return nil, err
	}

	bot := &Bot{cfg: cfg, logger: logger}

	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		rs, err := session.NewRedisStore(ctx, session.RedisStoreConfig{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			TTL:      cfg.Session.TTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		bot.redis = rs
		store = rs
	case "memory", "":
		store = session.NewInMemoryStore(session.InMemoryStoreConfig{TTL: cfg.Session.TTL}, logger)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
	bot.sessions = session.NewService(store, time.Now, logger)
	if collector != nil {
		bot.sessions.WithGauge(collector)
	}

	var orchOpts []orchestrator.Option
	if collector != nil {
		orchOpts = append(orchOpts, orchestrator.WithMetrics(collector))
	}
	bot.orch = orchestrator.New(
		intent.NewClassifier(gateway, logger),
		intent.NewConfirmer(gateway, logger),
		plan.NewBuilder(gateway, logger),
		plan.NewExecutor(registry, logger),
		bot.sessions,
		logger,
		orchOpts...,
	)
	return bot, nil
}

// ProcessMessage handles one user message. It always returns a reply.
func (b *Bot) ProcessMessage(ctx context.Context, utterance, sessionID string) *orchestrator.Reply {
	return b.orch.ProcessMessage(ctx, utterance, sessionID)
}

// ClearSession removes a session entirely.
func (b *Bot) ClearSession(ctx context.Context, sessionID string) error {
	return b.sessions.Clear(ctx, sessionID)
}

// CleanupOldSessions removes sessions idle longer than the given number of
// hours and reports how many were removed.
func (b *Bot) CleanupOldSessions(ctx context.Context, hours int) (int, error) {
	return b.sessions.CleanupOldSessions(ctx, hours)
}

// SessionHistory exports a session's turns, oldest first.
func (b *Bot) SessionHistory(ctx context.Context, sessionID string) ([]types.Turn, error) {
	return b.sessions.History(ctx, sessionID)
}

// Close releases backend connections.
func (b *Bot) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}
