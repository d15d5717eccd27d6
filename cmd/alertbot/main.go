package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/sorare-alert-bot/internal/api"
	"github.com/maltedev/sorare-alert-bot/internal/browser"
	"github.com/maltedev/sorare-alert-bot/internal/commands"
	"github.com/maltedev/sorare-alert-bot/internal/config"
	"github.com/maltedev/sorare-alert-bot/internal/database"
	"github.com/maltedev/sorare-alert-bot/internal/graphql"
	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/ledger"
	"github.com/maltedev/sorare-alert-bot/internal/notify"
	"github.com/maltedev/sorare-alert-bot/internal/queue"
	"github.com/maltedev/sorare-alert-bot/internal/ratelimit"
	"github.com/maltedev/sorare-alert-bot/internal/scanner"
	"github.com/maltedev/sorare-alert-bot/internal/scraper"
	"github.com/maltedev/sorare-alert-bot/internal/sink"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var (
		db          *database.DB
		redisClient *redis.Client
	)

	if cfg.Database.Enabled {
		var err error
		db, err = database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	store := watchlist.NewStore()
	seedWatchlist(store, cfg.Watchlist.SeedPath, logger)

	var seen ledger.Ledger = ledger.NewMemory()
	if redisClient != nil {
		seen = ledger.NewRedis(redisClient, cfg.Redis.LedgerKey)
	}

	var sinks []notify.Sink
	if cfg.Notifier.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewDiscordSink(cfg.Notifier.DiscordWebhookURL, cfg.Notifier.Username))
	}
	// the outbox is drained by the relay, which needs Redis
	if db != nil && redisClient != nil {
		sinks = append(sinks, notify.NewOutboxSink(database.NewOutboxRepository(db), cfg.Redis.AlertStream))
	}
	notifier := notify.NewNotifier(logger, sinks...)

	rows := sink.New(logger)
	if cfg.Sink.WorkbookPath != "" {
		rows.Register("workbook", sink.NewWorkbook(cfg.Sink.WorkbookPath))
	}
	if db != nil {
		rows.Register("database", sink.NewDatabase(database.NewRowRepository(db)))
	}
	if !rows.Configured() {
		logger.Info("no row sink configured, scan rows are not persisted")
	}

	market := graphql.New(graphql.Options{
		Endpoint:         cfg.Marketplace.GraphQLURL,
		UserAgent:        cfg.Marketplace.APIUserAgent,
		Timeout:          cfg.Scanner.FetchTimeout,
		CloudflareBypass: cfg.Marketplace.CloudflareBypass,
	}, logger)
	source := scraper.NewService(market, scraper.Options{
		BaseURL:         cfg.Marketplace.BaseURL,
		FetchTimeout:    cfg.Scanner.FetchTimeout,
		SettleDelay:     cfg.Scanner.SettleDelay,
		SelectorTimeout: cfg.Scanner.SelectorTimeout,
	}, logger)

	jobs := queue.NewInMemoryQueue()
	orch := scanner.New(scanner.Deps{
		Watchlist:   store,
		Ledger:      seen,
		Prices:      history.NewPriceStore(),
		Sales:       history.NewSalesStore(),
		Source:      source,
		Sessions:    sessionFactory(cfg),
		Notifier:    notifier,
		Sink:        rows,
		Queue:       jobs,
		EntityPause: ratelimit.NewPauseLimiter(cfg.Scanner.EntityDelay, cfg.Scanner.EntityDelayMax),
		SalesPause:  ratelimit.NewFixed(cfg.Scanner.SalesEntityDelay),
		ImportPause: ratelimit.NewFixed(cfg.Scanner.ImportEntityDelay),
	}, logger)

	cmds := commands.NewHandler(store, orch, orch.Prices, orch.Sales, logger)
	handlers := api.NewHandlers(store, orch, orch.Prices, orch.Sales, cmds, logger).
		WithImportTimeout(cfg.Server.ImportTimeout)

	g, gctx := errgroup.WithContext(ctx)

	if db != nil && redisClient != nil {
		relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		})
		handlers.WithOutbox(relay)
		g.Go(func() error {
			if err := relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handlers, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		return orch.Run(gctx)
	})
	g.Go(func() error {
		return orch.RunSchedule(gctx, scanner.Schedule{
			ScanInterval:      cfg.Scanner.ScanInterval,
			ScanInitialDelay:  cfg.Scanner.InitialScanDelay,
			SalesInterval:     cfg.Scanner.SalesInterval,
			SalesInitialDelay: cfg.Scanner.InitialSalesDelay,
		})
	})
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		jobs.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sessionFactory opens one headless browser per scan cycle.
func sessionFactory(cfg *config.Config) scanner.SessionFactory {
	return func(_ context.Context) (scanner.Session, error) {
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Browser.Headless
		opts.Timeout = cfg.Browser.Timeout
		opts.UserAgent = cfg.Browser.UserAgent
		opts.ViewportWidth = cfg.Browser.ViewportWidth
		opts.ViewportHeight = cfg.Browser.ViewportHeight
		opts.AcceptLanguage = cfg.Browser.AcceptLanguage
		opts.TimezoneID = cfg.Browser.TimezoneID
		opts.Locale = cfg.Browser.Locale
		opts.ProxyServer = cfg.Browser.ProxyServer
		opts.ProxyUsername = cfg.Browser.ProxyUsername
		opts.ProxyPassword = cfg.Browser.ProxyPassword
		opts.MaxRetries = cfg.Scanner.MaxRetries

		b, err := browser.New(opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func seedWatchlist(store *watchlist.Store, path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	seed, err := watchlist.LoadSeed(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no watchlist seed found", "path", path)
			return
		}
		logger.Warn("failed to load watchlist seed", "path", path, "error", err)
		return
	}
	n, err := store.Apply(seed)
	if err != nil {
		logger.Warn("watchlist seed partially applied", "error", err)
	}
	logger.Info("watchlist seeded", "entries", n, "path", path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
