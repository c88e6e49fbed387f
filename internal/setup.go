package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/streamtosite/internal/ai"
	"github.com/DukeRupert/streamtosite/internal/ai/anthropic"
	aimock "github.com/DukeRupert/streamtosite/internal/ai/mock"
	"github.com/DukeRupert/streamtosite/internal/channel"
	channelmock "github.com/DukeRupert/streamtosite/internal/channel/mock"
	"github.com/DukeRupert/streamtosite/internal/channel/youtube"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/email"
	"github.com/DukeRupert/streamtosite/internal/storage"
	"github.com/DukeRupert/streamtosite/internal/store"
)

// OpenStorage builds the configured storage backend. The returned close
// function releases backend resources and is never nil.
func OpenStorage(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageProvider {
	case storage.ProviderMemory:
		return storage.NewMemoryStorage(cfg.BaseURL+"/files"), noop, nil

	case storage.ProviderR2:
		s, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("r2 storage: %w", err)
		}
		return s, noop, nil

	case storage.ProviderPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.DatabaseUrl)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("database ready")
		return storage.NewPostgresStorage(db, cfg.BaseURL+"/files", logger), db.Close, nil

	default:
		s, err := storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("local storage: %w", err)
		}
		return s, noop, nil
	}
}

// OpenStore creates the state store on backend and loads persisted state.
func OpenStore(ctx context.Context, cfg *Config, backend storage.Storage, logger *slog.Logger) (*store.Store, error) {
	st := store.New(backend, store.Options{
		Keys:           storage.NewKeys(cfg.StateNamespace),
		BrandingPolicy: cfg.BrandingPolicy,
		DefaultUser: domain.User{
			Name:  cfg.DefaultUserName,
			Email: cfg.DefaultUserEmail,
			Plan:  domain.PlanStarter,
		},
	}, logger.With("component", "store"))
	if err := st.Load(ctx); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// NewChannelProvider builds the configured channel lookup.
func NewChannelProvider(ctx context.Context, cfg *Config, logger *slog.Logger) (channel.Provider, error) {
	logger = logger.With("component", "channel")
	if cfg.ChannelProvider == "youtube" {
		p, err := youtube.New(ctx, cfg.YouTubeAPIKey, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return channelmock.New(logger, cfg.MockChannelDelay), nil
}

// NewCopilot builds the configured AI co-pilot.
func NewCopilot(cfg *Config, logger *slog.Logger) (ai.Copilot, error) {
	logger = logger.With("component", "ai")
	if cfg.AIProvider == "anthropic" {
		p, err := anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return aimock.New(logger), nil
}

// NewNotifier builds the SMTP notifier, or returns nil when SMTP is not configured.
func NewNotifier(cfg *Config, logger *slog.Logger) (email.Notifier, error) {
	if !cfg.EmailEnabled() {
		return nil, nil
	}
	svc, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger.With("component", "email"))
	if err != nil {
		return nil, err
	}
	return svc, nil
}
