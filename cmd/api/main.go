package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/automaton-cpg/internal/application"
	appai "github.com/bryanwahyu/automaton-cpg/internal/application/ai"
	appanalysis "github.com/bryanwahyu/automaton-cpg/internal/application/analysis"
	"github.com/bryanwahyu/automaton-cpg/internal/config"
	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-cpg/internal/domain/graph"
	"github.com/bryanwahyu/automaton-cpg/internal/infra/ai/openai"
	contentstore "github.com/bryanwahyu/automaton-cpg/internal/infra/content"
	mysqlp "github.com/bryanwahyu/automaton-cpg/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/automaton-cpg/internal/infra/db/postgres"
	dockerrunner "github.com/bryanwahyu/automaton-cpg/internal/infra/executor/docker"
	"github.com/bryanwahyu/automaton-cpg/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-cpg/internal/infra/results"
	minioStore "github.com/bryanwahyu/automaton-cpg/internal/infra/storage"
	"github.com/bryanwahyu/automaton-cpg/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// result store doubles as the filesystem registry
	resultStore, err := results.New(cfg.Paths.ResultsDir)
	if err != nil {
		log.Fatalf("results store init error: %v", err)
	}

	contentStore, err := contentstore.New(cfg.Paths.CodeDir)
	if err != nil {
		log.Fatalf("content store init error: %v", err)
	}

	// registry backend: fs (default), mysql or postgres
	var registry domain.Registry = resultStore
	var db *sql.DB
	switch cfg.Database.Driver {
	case "", "fs":
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo := mysqlp.NewSubmissionRepository(db)
		if n, err := repo.FailInterrupted(ctx); err != nil {
			log.Fatalf("failing interrupted runs: %v", err)
		} else if n > 0 {
			log.Printf("failed %d interrupted runs from previous process", n)
		}
		registry = repo
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo := postgresp.NewSubmissionRepository(db)
		if n, err := repo.FailInterrupted(ctx); err != nil {
			log.Fatalf("failing interrupted runs: %v", err)
		} else if n > 0 {
			log.Printf("failed %d interrupted runs from previous process", n)
		}
		registry = repo
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}
	if db != nil {
		defer db.Close()
	}

	// init runner
	runner := dockerrunner.NewRunner(dockerrunner.Config{
		Image:      cfg.Engine.Image,
		Platform:   cfg.Engine.Platform,
		JavaOpts:   cfg.Engine.JavaOpts,
		ScriptsDir: cfg.Engine.ScriptsDir,
		Timeout:    time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
	})

	// init minio (optional)
	var artifacts domain.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		artifacts = store
	}

	// cleaning policy
	policy := graph.DefaultPolicy().WithSystemFunctions(cfg.Policy.SystemFunctions)
	if len(cfg.Policy.EntryPoints) > 0 {
		policy.EntryPoints = cfg.Policy.EntryPoints
	}
	if cfg.Policy.AllowExternal != nil {
		policy.AllowExternal = *cfg.Policy.AllowExternal
	}

	// init services
	svc := &appanalysis.Service{
		Registry:  registry,
		Content:   contentStore,
		Runner:    runner,
		Results:   resultStore,
		Artifacts: artifacts,
		Clock:     application.SystemClock{},
		Policy:    policy,
	}

	var aiSvc *appai.Service
	if cfg.OpenAI.APIKey != "" {
		aiSvc = appai.NewService(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
		mux.Use(middleware.RequireValidTenant)
		mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	}

	checkers := map[string]middleware.HealthChecker{
		"results_dir": &middleware.DirWritableChecker{Dir: cfg.Paths.ResultsDir},
	}
	if db != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}
	mux.Get("/healthz", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Mount("/", httpserver.NewRouter(svc, aiSvc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
