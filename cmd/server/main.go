package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anyuan-chen/manga/internal/activity"
	"github.com/anyuan-chen/manga/internal/ai"
	"github.com/anyuan-chen/manga/internal/api"
	"github.com/anyuan-chen/manga/internal/chapter"
	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/mastery"
	"github.com/anyuan-chen/manga/internal/performance"
	"github.com/anyuan-chen/manga/internal/platform/cache"
	"github.com/anyuan-chen/manga/internal/platform/config"
	"github.com/anyuan-chen/manga/internal/platform/database"
	"github.com/anyuan-chen/manga/internal/platform/logger"
	"github.com/anyuan-chen/manga/internal/quiz"
	"github.com/anyuan-chen/manga/internal/review"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(ctx, database.Options{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := manga.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	router, err := newAIRouter(ctx, cfg.AI)
	if err != nil {
		return err
	}

	var budget ai.BudgetChecker
	if limit := int64(cfg.AI.DailyTokenBudget); limit > 0 {
		if cfg.Cache.Enabled {
			c, err := cache.New(ctx, cfg.Cache.URL)
			if err != nil {
				return err
			}
			defer c.Close()
			budget = ai.NewRedisBudget(c.Client, limit)
		} else {
			budget = ai.NewInMemoryBudget(limit)
		}
	}

	h := newHandler(cfg, store, ai.WithBudget(router, budget), activity.NewPostgresLogger(db.Pool), db.HealthCheck)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(h, cfg.Server.AllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "providers", router.Providers())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// newHandler wires the quiz, review and chapter services over store.
func newHandler(cfg *config.Config, store manga.Store, completer ai.Completer, events activity.Logger, ready func(context.Context) error) *api.Handler {
	perf := performance.NewCache(store, performance.WithTTL(cfg.Quiz.PerformanceTTL))

	return api.NewHandler(api.Config{
		Gate: quiz.NewGate(store, perf),
		Generator: quiz.NewGenerator(quiz.GeneratorConfig{
			Panels:  store,
			Context: mastery.NewSynthesizer(perf),
			AI:      completer,
		}),
		Recorder:  quiz.NewRecorder(store),
		Review:    review.NewService(review.Config{Mistakes: store, AI: completer}),
		Stats:     chapter.NewStats(store),
		Annotator: chapter.NewAnnotator(store),
		Library:   chapter.NewLibrary(cfg.Library.ChaptersDir),
		Activity:  events,
		Ready:     ready,
	})
}

// newAIRouter registers every configured provider. Google goes first, then
// the OpenAI-compatible providers, then Anthropic and a local Ollama. The
// model override applies to the first provider registered.
func newAIRouter(ctx context.Context, cfg config.AIConfig) (*ai.Router, error) {
	router := ai.NewRouter()
	model := cfg.Model
	primary := func() string {
		m := model
		model = ""
		return m
	}
	openAIOpts := func() []ai.OpenAIOption {
		if m := primary(); m != "" {
			return []ai.OpenAIOption{ai.WithModel(m)}
		}
		return nil
	}

	if cfg.Google.APIKey != "" {
		var opts []ai.GoogleOption
		if m := primary(); m != "" {
			opts = append(opts, ai.WithGoogleModel(m))
		}
		google, err := ai.NewGoogleProvider(ctx, cfg.Google.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		router.Register("google", google)
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, openAIOpts()...))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, openAIOpts()...))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, openAIOpts()...))
	}
	if cfg.Anthropic.APIKey != "" {
		var opts []ai.AnthropicOption
		if m := primary(); m != "" {
			opts = append(opts, ai.WithAnthropicModel(m))
		}
		router.Register("anthropic", ai.NewAnthropicProvider(cfg.Anthropic.APIKey, opts...))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, openAIOpts()...))
	}

	if !router.HasProvider() {
		return nil, ai.ErrNoProvider
	}
	return router, nil
}
