package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	pgloader "live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/infra/sqlstore"
)

func TestLiveSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := sqlstore.OpenPostgres(pgURL)
	defer db.Close()
	if _, err := sqlstore.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := sqlstore.NewCatalog(db).SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	journal := sqlstore.NewJournal(db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	broadcaster := infraredis.NewBroadcaster(redisClient, 32, nil)
	service := app.NewLiveService(sessionStore, quizRepo, journal, broadcaster)

	host := domain.Caller{UserID: "host-1"}
	session, err := service.CreateSession(ctx, host, "quiz-1")
	require.NoError(t, err)

	events, cancel, err := service.Subscribe(ctx, session.ID)
	require.NoError(t, err)
	defer cancel()

	_, err = service.Start(ctx, host, session.ID)
	require.NoError(t, err)

	alice, err := service.Join(ctx, "E2E001", "alice")
	require.NoError(t, err)
	_, err = service.Join(ctx, "E2E001", "alice")
	require.ErrorIs(t, err, domain.ErrNicknameTaken)

	// Concurrent duplicates must collapse into one stored answer.
	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Answer(ctx, session.ID, alice.ID, "q1", []string{"o2"}, 15)
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, domain.ErrAlreadyAnswered)
	}
	require.Equal(t, 1, accepted)

	parts, err := journal.Participants(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, 50, parts[0].TotalScore)

	_, err = service.Advance(ctx, host, session.ID)
	require.NoError(t, err)

	stored, err := journal.Session(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, stored.Status)

	seen := make([]domain.EventType, 0, 4)
	timeout := time.After(5 * time.Second)
	for len(seen) < 4 {
		select {
		case ev := <-events:
			seen = append(seen, ev.Type)
		case <-timeout:
			t.Fatalf("timed out, got events %v", seen)
		}
	}
	require.Equal(t, []domain.EventType{
		domain.EventSessionStarted,
		domain.EventParticipantJoined,
		domain.EventParticipantAnswered,
		domain.EventSessionEnded,
	}, seen)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		OwnerID:    "host-1",
		Title:      "Arithmetic",
		AccessCode: "E2E001",
		Questions: []domain.Question{
			{
				ID:        "q1",
				Type:      domain.QuestionSingle,
				Text:      "What is 2 + 2?",
				TimeLimit: 30,
				Points:    100,
				Options: []domain.AnswerOption{
					{ID: "o1", Text: "3", Correct: false},
					{ID: "o2", Text: "4", Correct: true},
					{ID: "o3", Text: "5", Correct: false},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
