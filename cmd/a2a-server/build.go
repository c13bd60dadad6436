package main

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/internal/backoff"
	"github.com/sammcj/go-a2a-core/llm/gollm"
	"github.com/sammcj/go-a2a-core/pkg/config"
	"github.com/sammcj/go-a2a-core/pkg/task"
	"github.com/sammcj/go-a2a-core/plugins"
	"github.com/sammcj/go-a2a-core/server"
	"github.com/sammcj/go-a2a-core/server/auth"
	"github.com/sammcj/go-a2a-core/server/push"
	"github.com/sammcj/go-a2a-core/server/store"
	"github.com/sammcj/go-a2a-core/server/stream"
)

// resolveCard returns the agent card for cfg, advertising the configured
// authentication and the echo skill when the echo handler has no skills.
func resolveCard(cfg *config.ServerConfig) (*a2a.AgentCard, error) {
	card := cfg.AgentCard.ToAgentCard()
	if schemes := cfg.Auth.AuthSchemes(); len(schemes) > 0 {
		card.Authentication = &a2a.AgentAuthentication{Schemes: schemes}
	}
	if cfg.Handler.Name == "echo" && len(card.Skills) == 0 {
		card.Skills = append(card.Skills, plugins.EchoSkill())
	}
	if err := a2a.Validate(card); err != nil {
		return nil, fmt.Errorf("invalid agent card: %w", err)
	}
	return card, nil
}

// buildServer composes the server described by cfg.
func buildServer(cfg *config.ServerConfig, logger *zap.Logger) (*server.Server, error) {
	card, err := resolveCard(cfg)
	if err != nil {
		return nil, err
	}
	handler, err := buildHandler(cfg)
	if err != nil {
		return nil, err
	}
	authn, err := buildAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	st, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := []server.Option{
		server.WithListenAddress(cfg.ListenAddress),
		server.WithA2APathPrefix(cfg.A2APathPrefix),
		server.WithAgentCardPath(cfg.AgentCardPath),
		server.WithAgentCard(card),
		server.WithTaskHandler(handler),
		server.WithStore(st),
		server.WithAuthenticator(authn),
		server.WithLogger(logger),
		server.WithBrokerOptions(
			stream.WithBuffer(cfg.Stream.Buffer),
			stream.WithGraceTimeout(cfg.Stream.GraceTimeout.Std()),
		),
		server.WithRegistryOptions(
			push.WithPolicy(pushPolicy(cfg.Push)),
			push.WithAttemptTimeout(cfg.Push.Timeout.Std()),
		),
	}
	if cfg.WebSocketPath != "" {
		opts = append(opts, server.WithWebSocket(cfg.WebSocketPath))
	}
	if cfg.Auth.APIKeyHeader != "" {
		opts = append(opts, server.WithAPIKeyHeader(cfg.Auth.APIKeyHeader))
	}

	srv, err := server.NewServer(opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	logger.Info("server configured",
		zap.String("handler", cfg.Handler.Name),
		zap.String("store", cfg.Store.Driver),
		zap.String("auth", cfg.Auth.Mode))
	return srv, nil
}

func buildHandler(cfg *config.ServerConfig) (task.Handler, error) {
	switch cfg.Handler.Name {
	case "echo":
		return plugins.Echo(), nil
	case "llm":
		opts := []gollm.Option{
			gollm.WithProvider(cfg.LLM.Provider),
			gollm.WithModel(cfg.LLM.Model),
			gollm.WithAPIKey(cfg.LLM.APIKey),
		}
		if cfg.LLM.MaxTokens > 0 {
			opts = append(opts, gollm.WithMaxTokens(cfg.LLM.MaxTokens))
		}
		model, err := gollm.NewAdapter(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating LLM adapter: %w", err)
		}
		return plugins.LLM(model, cfg.LLM.SystemPrompt), nil
	default:
		return nil, fmt.Errorf("unknown handler %q", cfg.Handler.Name)
	}
}

func buildAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	switch cfg.Mode {
	case "", "none":
		return auth.NoAuth{}, nil
	case "token":
		return auth.StaticToken{Token: cfg.Token}, nil
	case "jwt":
		return auth.JWT{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		st, err := store.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func pushPolicy(cfg config.PushConfig) backoff.Policy {
	p := backoff.DefaultPolicy()
	p.MaxAttempts = cfg.MaxAttempts
	p.InitialDelay = cfg.InitialDelay.Std()
	p.MaxDelay = cfg.MaxDelay.Std()
	p.Multiplier = cfg.Multiplier
	return p
}
