package main

import (
	"context"
	"database/sql"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"chatspark/internal/config"
	"chatspark/internal/domain"
	"chatspark/internal/engage"
	"chatspark/internal/httpserver"
	"chatspark/internal/presence"
	"chatspark/internal/queue"
	"chatspark/internal/search"
	"chatspark/internal/security"
	"chatspark/internal/service"
	"chatspark/internal/store/postgres"
	"chatspark/internal/store/sqlite"
	"chatspark/internal/ws"
)

// repositories groups the store implementations selected at startup.
type repositories struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	drafts        domain.DraftRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	log := newLogger(cfg)

	db, repos, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	// Redis backs presence and search when configured; otherwise presence
	// falls back to the in-process store and search is disabled.
	var online presence.Store = presence.NewMemory()
	var indexer *search.Indexer
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		online = presence.NewRedis(rdb)
		indexer = search.NewIndexer(rdb)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	q := queue.New(log)
	if err := q.Connect(startCtx, queue.Config{
		URL:        cfg.NATSURL,
		MaxDeliver: cfg.ConsumerMaxDeliver,
		AckWait:    time.Duration(cfg.AckWaitSeconds) * time.Second,
	}); err != nil {
		startCancel()
		log.Fatal().Err(err).Msg("connect queue")
	}
	defer q.Close()
	if err := q.CreateConsumer(startCtx, queue.Config{
		MaxDeliver: cfg.ConsumerMaxDeliver,
		AckWait:    time.Duration(cfg.AckWaitSeconds) * time.Second,
	}); err != nil {
		startCancel()
		log.Fatal().Err(err).Msg("create consumer")
	}
	startCancel()

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	hub := ws.NewHub(online, log)

	userSvc := service.NewUserService(repos.users, online)
	convSvc := service.NewConversationService(repos.conversations, repos.messages)
	msgSvc := service.NewMessageService(repos.users, repos.conversations, repos.messages, indexer)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	scheduler := engage.NewScheduler(
		repos.users, repos.drafts,
		engage.NewShufflePairing(rng), engage.NewTemplateGenerator(rng),
		rng, time.Duration(cfg.ActivityWindowDays)*24*time.Hour, log,
	)
	queuer := engage.NewQueuer(repos.drafts, q, cfg.QueuerBatchSize, log)
	consumer := engage.NewConsumer(repos.drafts, msgSvc, hub, q, cfg.ConsumerMaxDeliver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic tasks: daily scheduler, per-minute queuer.
	c := cron.New()
	if _, err := c.AddFunc(cfg.EngageSchedule, func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler run failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.EngageSchedule).Msg("add scheduler job")
	}
	if _, err := c.AddFunc(cfg.QueuerSchedule, func() {
		if err := queuer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("queuer run failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.QueuerSchedule).Msg("add queuer job")
	}
	c.Start()

	msgs, err := q.Messages(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("open queue subscription")
	}
	go func() {
		if err := consumer.Run(ctx, msgs); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("consumer stopped")
		}
	}()

	router := httpserver.NewRouter(httpserver.Deps{
		Config:  cfg,
		Tokens:  tokenSvc,
		Users:   repos.users,
		UserSvc: userSvc,
		ConvSvc: convSvc,
		MsgSvc:  msgSvc,
		Hub:     hub,
		QueueOK: q.IsConnected,
		Log:     log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")

	// Stop intake first, then drain: cron jobs, the consumer, the HTTP server.
	cronCtx := c.Stop()
	<-cronCtx.Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("app", cfg.AppName).Logger()
}

// openStore opens PostgreSQL when DATABASE_URL is set, SQLite otherwise,
// runs migrations, and returns the repository set for the chosen driver.
func openStore(cfg *config.Config, log zerolog.Logger) (*sql.DB, *repositories, error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Str("driver", "postgres").Msg("store ready")
		return db, &repositories{
			users:         postgres.NewUserRepo(db),
			conversations: postgres.NewConversationRepo(db),
			messages:      postgres.NewMessageRepo(db),
			drafts:        postgres.NewDraftRepo(db),
		}, nil
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("store ready")
	return db, &repositories{
		users:         sqlite.NewUserRepo(db),
		conversations: sqlite.NewConversationRepo(db),
		messages:      sqlite.NewMessageRepo(db),
		drafts:        sqlite.NewDraftRepo(db),
	}, nil
}
