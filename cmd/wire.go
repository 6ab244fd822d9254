package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bnema/taskdump/internal/adapters/repo/sqlite"
	tomlrepo "github.com/bnema/taskdump/internal/adapters/repo/toml"
	chainstore "github.com/bnema/taskdump/internal/adapters/secrets/chain"
	envstore "github.com/bnema/taskdump/internal/adapters/secrets/env"
	filestore "github.com/bnema/taskdump/internal/adapters/secrets/file"
	openaimodel "github.com/bnema/taskdump/internal/adapters/textmodel/openai"
	"github.com/bnema/taskdump/internal/adapters/tracker/todoist"
	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/config"
	"github.com/bnema/taskdump/internal/logging"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/spf13/viper"
)

const (
	todoistTokenEnv = "TODOIST_API_TOKEN"
	openAIKeyEnv    = "OPENAI_API_KEY"
)

type app struct {
	cfg          config.Config
	orchestrator *application.Orchestrator
	secretStore  ports.SecretStore
	logger       *logging.Logger
	now          func() time.Time
	closers      []func() error
}

type repositories struct {
	sessions      ports.SessionRepository
	conversations ports.ConversationRepository
	close         func() error
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	v := viper.New()
	cfg, err := config.Load(v, homeDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	repos, err := wireRepositories(cfg, v)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	secretStore, err := wireSecretStore(cfg)
	if err != nil {
		_ = repos.close()
		_ = logger.Close()
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	httpClient := &http.Client{}
	tracker := &todoist.Client{
		BaseURL:        cfg.Tracker.BaseURL,
		Token:          todoist.TokenSource(secretSource(secretStore, cfg.Tracker.TokenKey)),
		HTTPClient:     httpClient,
		RequestTimeout: cfg.Tracker.Timeout,
		MaxAttempts:    cfg.Tracker.MaxAttempts,
		Backoff:        cfg.Tracker.Backoff,
		MaxBackoff:     cfg.Tracker.MaxBackoff,
	}
	model := &openaimodel.Client{
		BaseURL:    cfg.Model.BaseURL,
		Model:      cfg.Model.Name,
		Key:        openaimodel.KeySource(secretSource(secretStore, cfg.Model.KeyKey)),
		HTTPClient: httpClient,
	}

	clock := ports.SystemClock{}
	orchestrator := application.NewOrchestrator(
		repos.sessions,
		tracker,
		application.NewClassifier(model, logger, cfg.Model.Timeout),
		application.NewConversationService(repos.conversations, cfg.Context.TTL, clock),
		ports.UUIDGenerator{},
		clock,
		logger,
	)

	return &app{
		cfg:          cfg,
		orchestrator: orchestrator,
		secretStore:  secretStore,
		logger:       logger,
		now:          time.Now,
		closers:      []func() error{repos.close, logger.Close},
	}, nil
}

func wireRepositories(cfg config.Config, v *viper.Viper) (repositories, error) {
	switch cfg.Storage.Backend {
	case config.BackendTOML:
		sessions, err := tomlrepo.NewSessionRepository(v)
		if err != nil {
			return repositories{}, fmt.Errorf("wire session repository: %w", err)
		}
		conversations, err := tomlrepo.NewConversationRepository(v)
		if err != nil {
			return repositories{}, fmt.Errorf("wire conversation repository: %w", err)
		}
		return repositories{sessions: sessions, conversations: conversations, close: func() error { return nil }}, nil
	default:
		db, err := sqlite.Open(cfg.Storage.Dir)
		if err != nil {
			return repositories{}, fmt.Errorf("open session database: %w", err)
		}
		return repositories{
			sessions:      sqlite.NewSessionRepository(db),
			conversations: sqlite.NewConversationRepository(db),
			close:         db.Close,
		}, nil
	}
}

func wireSecretStore(cfg config.Config) (*chainstore.Store, error) {
	envVars := map[string]string{
		cfg.Tracker.TokenKey: todoistTokenEnv,
		cfg.Model.KeyKey:     openAIKeyEnv,
	}
	if cfg.Secrets.UsePass {
		return chainstore.NewDefault(cfg.Secrets.Dir, envVars)
	}
	return chainstore.NewStoreChecked(envstore.NewStore(envVars), filestore.NewStore(cfg.Secrets.Dir))
}

func secretSource(store ports.SecretStore, key string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return store.Get(ctx, key)
	}
}

func (a *app) close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
