package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-race-service/internal/app"
	"quiz-race-service/internal/domain"
	pgstore "quiz-race-service/internal/infra/postgres"
	pgmigrations "quiz-race-service/internal/infra/postgres/migrations"
	infraredis "quiz-race-service/internal/infra/redis"
)

func TestRaceEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateMaterials(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	backend := pgstore.NewMaterialStore(pool)
	if err := backend.SaveMaterial(ctx, sampleMaterial()); err != nil {
		t.Fatalf("save material: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	races := app.NewRaceService(
		infraredis.NewRaceStore(redisClient),
		infraredis.NewLeaderboardStore(redisClient, nil),
		infraredis.NewProgressionStore(redisClient),
	)
	materials := app.NewMaterialService(nil, backend, infraredis.NewMaterialRepository(redisClient, backend, 5*time.Minute), races)

	if _, err := races.CreateRace(ctx, "a@x.com", "mat-1", "Arithmetic"); err != nil {
		t.Fatalf("create race: %v", err)
	}
	if _, err := races.JoinRace(ctx, "mat-1", "b@x.com"); err != nil {
		t.Fatalf("join race: %v", err)
	}
	if _, err := races.JoinRace(ctx, "mat-1", "b@x.com"); domain.KindOf(err) != domain.KindAlreadyJoined {
		t.Fatalf("expected already joined, got %v", err)
	}
	if _, err := races.InitLeaderboard(ctx, "mat-1", 2); err != nil {
		t.Fatalf("init leaderboard: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := races.IncrementScore(ctx, "mat-1", "b@x.com", 1); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	lb, err := races.GetLeaderboard(ctx, "mat-1")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	bob := lb.Entries["b@x.com"]
	if bob.Score != 20 || bob.Progression != 21 || !bob.Done {
		t.Fatalf("expected 20 increments applied to bob, got %+v", bob)
	}
	if alice := lb.Entries["a@x.com"]; alice.Score != 0 || alice.Progression != 1 || alice.Done {
		t.Fatalf("alice should be untouched, got %+v", alice)
	}

	out, err := materials.ForParticipant(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("materials for participant: %v", err)
	}
	if len(out) != 1 || out[0].Material.Title != "Sums" || out[0].Material.NumQuestions() != 1 {
		t.Fatalf("unexpected materials %+v", out)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "race", "POSTGRES_PASSWORD": "racepass", "POSTGRES_DB": "racedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://race:racepass@%s:%s/racedb?sslmode=disable", host, port.Port())
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

func migrateMaterials(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleMaterial() domain.Material {
	return domain.Material{
		ID:    "mat-1",
		Title: "Sums",
		Items: []domain.MaterialItem{
			{ID: 1, Type: domain.ItemTypeReading, Material: "Adding numbers combines them."},
			{ID: 2, Type: domain.ItemTypeMCQQuiz, Question: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
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
