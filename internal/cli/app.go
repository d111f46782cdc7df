package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/model"

	"github.com/easeaico/mirror-clarity/internal/agent"
	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/config"
	"github.com/easeaico/mirror-clarity/internal/lock"
	"github.com/easeaico/mirror-clarity/internal/memory"
	"github.com/easeaico/mirror-clarity/internal/metrics"
	"github.com/easeaico/mirror-clarity/internal/models"
	"github.com/easeaico/mirror-clarity/internal/repository"
	"github.com/easeaico/mirror-clarity/internal/signal"
	"github.com/easeaico/mirror-clarity/internal/storage"
)

// App is the wired engine and the resources it owns.
type App struct {
	Config  *config.Config
	Service *clarity.Service
	Metrics *metrics.Metrics
	// ADKMemory exposes the vector store to ADK runners hosted in-process.
	ADKMemory adkmemory.Service

	closers []func()
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewApp builds the persistence backends, embedder, locker and classifier
// selected by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var (
		profiles clarity.ProfileRepo
		records  memory.RecordRepo
		journal  clarity.JournalRepo
	)
	if cfg.DatabaseURL != "" {
		store, err := repository.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		profiles, records, journal = store.Profiles, store.Memories, store.Journal
		slog.Debug("using postgres backend")
	} else {
		db, err := storage.Open(cfg.DataDir, false)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() {
			if err := db.Close(); err != nil {
				slog.Warn("failed to close badger", "error", err.Error())
			}
		})
		profiles, records, journal = db.Profiles(), db.Memories(), db.Journal()
		slog.Debug("using badger backend", "data_dir", cfg.DataDir)
	}

	embedder, err := memory.NewEmbedder(ctx, memory.EmbedderConfig{
		Provider:   cfg.EmbeddingProvider,
		Model:      cfg.EmbeddingModel,
		APIKey:     cfg.EmbeddingAPIKey(),
		BaseURL:    cfg.OpenAIBaseURL,
		Dimensions: cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	store := memory.NewStore(records, embedder, memory.WithMetrics(app.Metrics))
	app.ADKMemory = memory.NewADKService(store, cfg.TopN)

	opts := []clarity.Option{
		clarity.WithMemories(store),
		clarity.WithJournal(journal),
		clarity.WithMetrics(app.Metrics),
		clarity.WithTopN(cfg.TopN),
		clarity.WithMaxRetries(cfg.MaxRetries),
	}

	if cfg.QuizPath != "" {
		quiz, err := clarity.LoadQuiz(cfg.QuizPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, clarity.WithQuiz(quiz))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		app.closers = append(app.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		opts = append(opts, clarity.WithLocker(lock.NewRedisLocker(client, "", 0)))
		slog.Debug("using redis locks", "addr", cfg.RedisAddr)
	}

	if cfg.SignalProvider != "" {
		llm, err := newLLM(ctx, cfg, cfg.SignalModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create signal model: %w", err)
		}
		analyzer, err := signal.NewAnalyzer(llm)
		if err != nil {
			return nil, err
		}
		opts = append(opts, clarity.WithClassifier(analyzer))
	}

	app.Service = clarity.NewService(profiles, opts...)
	ok = true
	return app, nil
}

// NewCompanion builds the chat companion on the configured model provider.
func (a *App) NewCompanion(ctx context.Context) (*agent.Companion, error) {
	if a.Config.SignalProvider == "" {
		return nil, fmt.Errorf("chat needs a model: set signal_provider and signal_model")
	}
	llm, err := newLLM(ctx, a.Config, a.Config.ChatModel())
	if err != nil {
		return nil, fmt.Errorf("failed to create companion model: %w", err)
	}
	return agent.NewCompanion(agent.CompanionConfig{
		Model:      llm,
		Service:    a.Service,
		Memory:     a.ADKMemory,
		MaxEntries: a.Config.TopN,
	})
}

func newLLM(ctx context.Context, cfg *config.Config, name string) (model.LLM, error) {
	return models.New(ctx, models.Config{
		Provider: cfg.SignalProvider,
		Name:     name,
		APIKey:   cfg.SignalAPIKey,
		BaseURL:  signalBaseURL(cfg),
	})
}

func signalBaseURL(cfg *config.Config) string {
	if cfg.SignalProvider == models.ProviderOpenAI {
		return cfg.OpenAIBaseURL
	}
	return ""
}
