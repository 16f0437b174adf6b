package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-race-service/internal/app"
	"quiz-race-service/internal/config"
	"quiz-race-service/internal/infra/generator"
	"quiz-race-service/internal/infra/memory"
	pgstore "quiz-race-service/internal/infra/postgres"
	redisstore "quiz-race-service/internal/infra/redis"
	transport "quiz-race-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// listenPort prefers the flag, then server.port, then 8080.
func listenPort(flag string, server config.ServerConfig) string {
	if flag != "" {
		return flag
	}
	if server.Port != "" {
		return server.Port
	}
	return "8080"
}

// materialBackend is the durable home of generated materials.
type materialBackend interface {
	app.MaterialStore
	memory.MaterialLoader
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := listenPort(portFlag, cfg.Server)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var backend materialBackend = memory.NewMaterialStore(nil)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		backend = pgstore.NewMaterialStore(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Material.CacheTTL, 10*time.Minute)
	var materials app.MaterialRepository
	var races *app.RaceService
	if redisClient != nil {
		materials = redisstore.NewMaterialRepository(redisClient, backend, cacheTTL)
		races = app.NewRaceService(
			redisstore.NewRaceStore(redisClient),
			redisstore.NewLeaderboardStore(redisClient, nil),
			redisstore.NewProgressionStore(redisClient),
		)
	} else {
		materials = memory.NewMaterialRepository(backend, cacheTTL)
		races = app.NewRaceService(
			memory.NewRaceStore(),
			memory.NewLeaderboardStore(nil),
			memory.NewProgressionStore(),
		)
	}

	var gen app.Generator
	if cfg.Generator.URL != "" {
		gen = generator.NewHTTPGenerator(cfg.Generator.URL, config.TTLDuration(cfg.Generator.Timeout, time.Minute))
	} else {
		log.Printf("generator url not configured; material generation disabled")
	}
	materialService := app.NewMaterialService(gen, backend, materials, races)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(races, materialService).Register(mux)
	mux.HandleFunc("/ws/leaderboard", transport.NewWSHandler(races).ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting race service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
