package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	pgloader "live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/infra/sqlstore"
	"live-quiz-service/internal/logger"
	"live-quiz-service/internal/metrics"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New("live-quiz", cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var db *bun.DB
	var journal app.Journal = memory.NewJournal()
	if cfg.Postgres.URL != "" || cfg.SQLite.Path != "" {
		db, err = sqlstore.Open(cfg.Postgres.URL, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := runMigrations(ctx, db, log); err != nil {
			return err
		}
		journal = sqlstore.NewJournal(db)
	} else {
		log.Warn("no database configured, session journal kept in memory")
	}

	loader, closeLoader, err := quizLoader(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeLoader()

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizCatalog
	if redisClient != nil {
		repo := infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		repo.ObserveLookups(func(result string) { m.QuizCacheLookups.WithLabelValues(result).Inc() })
		quizRepo = repo
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	onDropped := func() { m.EventsDropped.Inc() }
	var store app.SessionRepository
	var events app.Broadcaster
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, redisTTL)
		events = infraredis.NewBroadcaster(redisClient, cfg.Session.SubscriberBuffer, onDropped)
	} else {
		store = memory.NewSessionStore()
		events = memory.NewBroker(cfg.Session.SubscriberBuffer, onDropped)
	}

	service := app.NewLiveService(store, quizRepo, journal, events,
		app.WithLogger(log),
		app.WithMetrics(m),
		app.WithRetention(config.TTLDuration(cfg.Session.Retention, 30*time.Minute)),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", m.Handler())
	transport.NewAPI(service, log).Register(mux, m)
	mux.Handle("GET /ws", m.Middleware("/ws", http.HandlerFunc(transport.NewWSHandler(service, log).ServeWS)))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      logger.Middleware(log, mux),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting live quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(config.TTLDuration(cfg.Session.SweepInterval, time.Minute))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				service.Sweep(gctx)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// quizLoader picks the catalog source: Postgres, then the SQLite quizzes table, then YAML fixtures,
// then a built-in demo quiz.
func quizLoader(ctx context.Context, cfg config.Config, db *bun.DB, log logrus.FieldLogger) (memory.QuizLoader, func(), error) {
	noop := func() {}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, noop, err
		}
		if cfg.Quiz.Fixtures != "" {
			if err := seedCatalog(ctx, db, cfg.Quiz.Fixtures, log); err != nil {
				pool.Close()
				return nil, noop, err
			}
		}
		return pgloader.NewQuizLoader(pool), pool.Close, nil
	}
	if db != nil {
		if cfg.Quiz.Fixtures != "" {
			if err := seedCatalog(ctx, db, cfg.Quiz.Fixtures, log); err != nil {
				return nil, noop, err
			}
		}
		return sqlstore.NewCatalog(db), noop, nil
	}
	if cfg.Quiz.Fixtures != "" {
		loader, err := memory.LoadFixtures(cfg.Quiz.Fixtures)
		return loader, noop, err
	}
	return memory.NewStaticQuizLoader(sampleQuizzes()), noop, nil
}

// sampleQuizzes provides a minimal demo quiz; configure quiz.fixtures or a database in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:         "quiz-1",
			OwnerID:    "demo-host",
			Title:      "Warm-up",
			AccessCode: "DEMO01",
			Questions: []domain.Question{
				{
					ID:        "q1",
					Position:  1,
					Type:      domain.QuestionSingle,
					Text:      "What is 2 + 2?",
					TimeLimit: 20,
					Points:    100,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
				},
				{
					ID:        "q2",
					Position:  2,
					Type:      domain.QuestionMultiple,
					Text:      "Which of these are prime?",
					TimeLimit: 30,
					Points:    200,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "2", Correct: true},
						{ID: "o2", Text: "4", Correct: false},
						{ID: "o3", Text: "7", Correct: true},
						{ID: "o4", Text: "9", Correct: false},
					},
				},
			},
		},
	}
}
