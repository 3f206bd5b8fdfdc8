package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/confirmation"
	"github.com/maheshrc27/postflow/internal/effects"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/platform/facebook"
	"github.com/maheshrc27/postflow/internal/platform/instagram"
	"github.com/maheshrc27/postflow/internal/platform/linkedin"
	"github.com/maheshrc27/postflow/internal/platform/x"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/ratelimit"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduler"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/worker"
	"github.com/maheshrc27/postflow/pkg/logger"
	"github.com/maheshrc27/postflow/pkg/utils"
)

var (
	envFile   string
	tokenOrg  string
	tokenTTL  time.Duration
	version   = "0.1.0"
	gitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "postflow",
	Short: "Postflow schedules and publishes social media posts",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the platform workers and the reconcile job",
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Postflow %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for one organization",
	RunE:  runToken,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "organization id the token is scoped to")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(serveCmd, tokenCmd, versionCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is not set")
	}
	token, err := utils.GenerateToken(cfg.SecretKey, tokenOrg, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runServer(*cobra.Command, []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.Open(ctx, cfg.PostgresURI)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURI)
	if err != nil {
		return fmt.Errorf("invalid redis uri: %w", err)
	}

	var store ratelimit.CounterStore
	if cfg.RateLimitStore == "memory" {
		store = ratelimit.NewMemoryStore()
	} else {
		opts, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			return fmt.Errorf("invalid redis uri: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis is unreachable: %w", err)
		}
		store = ratelimit.NewRedisStore(rdb)
	}
	limiter := ratelimit.NewLimiter(store, ratelimit.DefaultRules, appLogger)

	postRepo := repository.NewPostRepository(db)
	jobRepo := repository.NewScheduleJobRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	workerCfgs := map[models.Platform]config.PlatformWorker{
		models.PlatformInstagram: cfg.Instagram,
		models.PlatformFacebook:  cfg.Facebook,
		models.PlatformLinkedIn:  cfg.LinkedIn,
		models.PlatformX:         cfg.X,
	}

	httpClient := platform.DefaultHTTPClient()
	registry, err := platform.NewRegistry(
		instagram.New(cfg.Instagram.APIBaseURL, httpClient),
		facebook.New(cfg.Facebook.APIBaseURL, httpClient),
		linkedin.New(cfg.LinkedIn.APIBaseURL, httpClient),
		x.New(cfg.X.APIBaseURL, httpClient),
	)
	if err != nil {
		return err
	}

	r2Service, err := service.NewR2Service(ctx, cfg.R2)
	if err != nil {
		return err
	}
	accountService := service.NewAccountService(socialAccountRepo, cfg.SecretKey, appLogger)
	mediaService := service.NewMediaService(mediaAssetRepo, r2Service, appLogger)
	notificationService := service.NewNotificationService(cfg.NotifyWebhookURL, &http.Client{Timeout: 10 * time.Second}, appLogger)
	analyticsService := service.NewAnalyticsService(analyticsRepo)
	auditService := service.NewAuditService(auditRepo)

	dispatcher := effects.NewAsyncDispatcher(appLogger, 30*time.Second)
	confirmer := confirmation.NewHandler(postRepo, jobRepo, notificationService, analyticsService, dispatcher, appLogger)
	preparer := media.NewPreparer(mediaService, limiter, appLogger)

	q := queue.NewAsynqQueue(redisOpt, appLogger)
	defer q.Close()

	sched := scheduler.New(scheduler.Deps{
		Posts:     postRepo,
		Jobs:      jobRepo,
		Queue:     q,
		Registry:  registry,
		Limiter:   limiter,
		Confirmer: confirmer,
		Audit:     auditService,
		Effects:   dispatcher,
	}, appLogger)

	var workers []*worker.Worker
	for _, p := range registry.Platforms() {
		client, _ := registry.Get(p)
		wc := workerCfgs[p]
		publisher := worker.NewPublisher(client, worker.PublisherDeps{
			Posts:     postRepo,
			Jobs:      jobRepo,
			Attempts:  attemptRepo,
			Accounts:  accountService,
			Media:     preparer,
			Limiter:   limiter,
			Confirmer: confirmer,
		}, wc.JobsPerMinute, appLogger)
		workers = append(workers, worker.New(redisOpt, worker.Config{
			Platform:        p,
			Concurrency:     wc.Concurrency,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, publisher, appLogger))
	}
	pool := worker.NewPool(appLogger, workers...)
	if err := pool.Start(); err != nil {
		return err
	}

	reconcileJob := job.NewReconcileJob(postRepo, jobRepo, attemptRepo, q, confirmer, cfg.StalePublishingAfter, appLogger)
	c := cron.New()
	if err := c.AddFunc("@every "+cfg.ReconcileInterval.String(), reconcileJob.Reconcile); err != nil {
		pool.Shutdown()
		return fmt.Errorf("schedule reconcile job: %w", err)
	}
	c.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			appLogger.Error("unhandled request error", zap.Error(err), zap.String("path", c.Path()))
			return handlers.WriteError(c, err)
		},
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	api.RegisterRoutes(app,
		middleware.NewAuthMiddleware(*cfg, appLogger),
		handlers.NewPostHandler(sched, postRepo, appLogger),
	)

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("starting http server", zap.String("addr", cfg.HTTPAddr), zap.String("version", version))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		appLogger.Info("shutting down")
	case runErr = <-errCh:
		appLogger.Error("http server stopped", zap.Error(runErr))
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		appLogger.Error("http shutdown", zap.Error(err))
	}
	c.Stop()
	pool.Shutdown()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()
	if err := dispatcher.Wait(waitCtx); err != nil {
		appLogger.Warn("pending side effects abandoned", zap.Error(err))
	}

	appLogger.Info("server exited")
	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
