package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/app"
	"quizbot/internal/config"
	"quizbot/internal/extract"
	"quizbot/internal/infra/memory"
	pgstore "quizbot/internal/infra/postgres"
	redisstore "quizbot/internal/infra/redis"
	"quizbot/internal/oracle"
	transport "quizbot/internal/transport/http"
	"quizbot/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to start the bot.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	// Local development keeps secrets in a .env file; production sets real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not configured (set BOT_TOKEN or telegram.token)")
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store app.SessionStore = memory.NewSessionStore()
	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		endedTTL := config.TTLDuration(cfg.Redis.EndedTTL, 24*time.Hour)
		store = redisstore.NewSessionStore(client, endedTTL)
		log.Info("using redis session store", zap.String("addr", cfg.Redis.Addr))
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewSessionStore(pool)
		log.Info("using postgres session store")
	default:
		log.Warn("no redis or postgres configured, sessions will not survive restarts")
	}

	extractor := extract.NewClient(cfg.Extractor.URL, config.TTLDuration(cfg.Extractor.Timeout, 30*time.Second), log)

	gemini := oracle.NewGemini(
		cfg.Oracle.APIKey,
		cfg.Oracle.Model,
		cfg.Oracle.BaseURL,
		config.TTLDuration(cfg.Oracle.Timeout, 20*time.Second),
		log,
	)
	cached := oracle.NewCached(gemini, config.TTLDuration(cfg.Oracle.CacheTTL, time.Hour))

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	gateway := telegram.NewGateway(bot, log)
	service := app.NewQuizService(store, gateway, extractor, cached, app.NewScheduler(), log)

	// Pick deadlines back up for quizzes that were running before a restart.
	if err := service.RearmPending(ctx); err != nil {
		log.Warn("re-arming pending quizzes failed", zap.Error(err))
	}

	handler := telegram.NewHandler(bot, service, gateway, cfg.Telegram.BackupChannelID, log)
	handler.Register()

	liveHandler := transport.NewLiveHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/live", liveHandler.ServeLive)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting http sidecar", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http sidecar failed", zap.Error(err))
		}
	}()

	go func() {
		log.Info("starting telegram bot", zap.String("username", bot.Me.Username))
		bot.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down...")
	}

	bot.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
