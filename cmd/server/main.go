package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/internal/ai"
	"github.com/mit45/AutoSocial-Ai/internal/api"
	"github.com/mit45/AutoSocial-Ai/internal/api/handlers"
	"github.com/mit45/AutoSocial-Ai/internal/api/middleware"
	"github.com/mit45/AutoSocial-Ai/internal/imaging"
	job "github.com/mit45/AutoSocial-Ai/internal/jobs"
	"github.com/mit45/AutoSocial-Ai/internal/lock"
	applog "github.com/mit45/AutoSocial-Ai/internal/logger"
	"github.com/mit45/AutoSocial-Ai/internal/queue"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/service"
	"github.com/mit45/AutoSocial-Ai/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applog.Init(cfg.Debug)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		slog.Warn("metrics disabled", "error", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	version, dirty, err := repository.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("database migrated", "version", version, "dirty", dirty)

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		log.Fatalf("Failed to create media directory: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// Repositories
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	automationRepo := repository.NewAutomationRepository(db)
	automationRunRepo := repository.NewAutomationRunRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)

	// Services
	r2Service := service.NewR2Service(*cfg)
	instagramService := service.NewInstagramService(*cfg)
	accountService := service.NewSocialAccountService(*cfg, socialAccountRepo, instagramService)
	storyCanvas := service.NewStoryCanvasService(httpClient, r2Service, postRepo)
	publishService := service.NewPublishService(*cfg, postRepo, historyRepo, accountService, instagramService,
		service.WithStoryCanvas(storyCanvas),
		service.WithPublishMetrics(metrics))
	postService := service.NewPostService(postRepo, r2Service)
	sweeperService := service.NewSweeperService(postRepo, publishService, metrics, time.Now)

	deps := service.GeneratorDeps{
		Trends:    ai.NewStaticTrends(),
		Renderer:  imaging.PNGRenderer{},
		Storage:   r2Service,
		Scheduler: queue.NewPublisher(client),
		Fetch:     service.HTTPFetcher(httpClient),
		Metrics:   metrics,
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiTier)
		if err != nil {
			slog.Error("gemini client unavailable, using fallback captions", "error", err)
		} else {
			defer gemini.Close()
			deps.Content = gemini
		}
	}
	if cfg.ImageAPIKey != "" {
		deps.Images = ai.NewImageClient(cfg.ImageAPIURL, cfg.ImageAPIKey, cfg.HTTPTimeout)
	}
	generatorService := service.NewGeneratorService(*cfg, postRepo, accountService, deps)
	automationService := service.NewAutomationService(*cfg, automationRepo, automationRunRepo, postRepo, accountService, generatorService,
		service.WithAutomationMetrics(metrics))

	app := fiber.New(fiber.Config{
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		BodyLimit:    20 * 1024 * 1024, // 20 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error(err.Error(), "path", c.Path())
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		MaxAge:       3600,
	}))
	app.Static(service.LocalMediaPrefix, cfg.MediaDir)

	api.SetupRoutes(app, middleware.NewAuthMiddleware(*cfg), api.Handlers{
		Posts:    handlers.NewPostHandler(postService, publishService),
		Content:  handlers.NewContentHandler(generatorService, sweeperService),
		Accounts: handlers.NewAccountHandler(accountService, automationService),
	})

	// queue
	queueW := queue.NewQueue(publishService)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		slog.Info("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	// background jobs
	var locker lock.Locker
	runnerOpts := []job.RunnerOption{}
	switch cfg.SchedulerLock {
	case "pidfile":
		locker = lock.NewPIDFile(cfg.LockFile)
	default:
		locker = lock.NewRedisLease(rdb, lock.DefaultLeaseKey, cfg.LockTTL)
		runnerOpts = append(runnerOpts, job.WithRenewEvery(cfg.LockTTL/3))
	}

	tasks := []*job.Task{
		{Name: "scheduled-sweep", Every: cfg.SweepInterval, RunAtStart: true, Run: job.NewSweepJob(sweeperService).Run},
		{Name: "automation", Every: cfg.AutomationInterval, Run: job.NewAutomationJob(automationService).Run},
		{Name: "token-refresh", Every: 12 * time.Hour, RunAtStart: true, Run: job.NewTokenRefreshJob(socialAccountRepo, accountService).Run},
	}
	runner := job.NewRunner(locker, tasks, runnerOpts...)
	if _, err := runner.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info(fmt.Sprintf("Server is running on http://localhost:%s", cfg.Port))

	gracefulShutdown(app, server, runner)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, runner *job.Runner) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := runner.Stop(ctx); err != nil {
		slog.Error("failed to release scheduler lock", "error", err)
	}
	server.Shutdown()

	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}

	slog.Info("Server shutdown complete.")
}
