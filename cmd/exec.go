package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"checkin-system/config"
	"checkin-system/internal/handlers"
	"checkin-system/internal/logging"
	"checkin-system/internal/media"
	"checkin-system/internal/notify"
	"checkin-system/internal/recognition"
	"checkin-system/internal/services"
	"checkin-system/internal/store"
	"checkin-system/monitoring"
	"checkin-system/security"
	"checkin-system/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	users store.AttendeeStore
	queue store.QueueStore
	redis *redis.Client
}

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	handlers.HideInternalErrors(cfg.IsProduction())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.redis != nil {
		defer st.redis.Close()
	}

	app := pocketbase.New()

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	objects, err := media.NewStorage(media.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MediaBucket,
		PublicURL: cfg.MediaPublicURL,
	})
	if err != nil {
		return err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logging.Warn().Err(err).Str("bucket", cfg.MediaBucket).Msg("media bucket unavailable, uploads will fail until it is reachable")
	}

	recognizer := recognition.NewClient(recognition.Config{
		BaseURL:             cfg.RecognitionURL,
		Timeout:             cfg.RecognitionTimeout,
		HealthTimeout:       cfg.RecognitionHealthTimeout,
		BreakerMaxRequests:  cfg.BreakerMaxRequests,
		BreakerInterval:     cfg.BreakerInterval,
		BreakerTimeout:      cfg.BreakerTimeout,
		BreakerFailureRatio: cfg.BreakerFailureRatio,
	})

	monitor := monitoring.NewMonitor(st.queue)

	// Initialize services
	logs := services.NewSystemLogService(services.NewPocketBaseLogSink(app))
	queueService := services.NewQueueService(st.queue, newPublisher(cfg), monitor, cfg)
	userService := services.NewUserService(st.users, st.queue, logs)
	checkinService := services.NewCheckinService(st.users, queueService, recognizer, logs, monitor, cfg)
	adminService := services.NewAdminService(st.users, queueService, userService, recognizer, logs, cfg)
	authService := services.NewAuthService(cfg)
	mediaService := services.NewMediaService(objects, userService)

	var limiter *security.RateLimiter
	if st.redis != nil {
		limiter = security.NewRateLimiter(st.redis, cfg.RateLimitWindow)
	}

	// Initialize handlers
	rt := routes{
		checkin: handlers.NewCheckinHandler(checkinService),
		queue:   handlers.NewQueueHandler(queueService),
		users:   handlers.NewUserHandler(userService),
		imports: handlers.NewImportHandler(userService),
		uploads: handlers.NewUploadHandler(mediaService),
		auth:    handlers.NewAuthHandler(authService),
		admin:   handlers.NewAdminHandler(adminService),

		limiter:      limiter,
		requireAdmin: security.RequireAdmin(authService),
		checkinLimit: cfg.CheckinRateLimit,
		aiLimit:      cfg.AIRateLimit,
	}

	// Start background tasks
	go monitor.Run(ctx, cfg.MetricsInterval)

	var metricsSrv *http.Server
	if cfg.EnableMetrics {
		metricsSrv = monitoring.StartServer(cfg.MetricsPort)
	}

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		rt.register(se)
		logging.Info().
			Str("environment", cfg.Environment).
			Str("storage", cfg.StorageDriver).
			Msg("server routes registered")
		return se.Next()
	})

	var once sync.Once
	stop := func() { once.Do(func() { shutdown(cancel, metricsSrv) }) }

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		stop()
		return e.Next()
	})

	// Setup graceful shutdown
	go handleShutdown(stop)

	return app.Start()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StorageDriver {
	case "memory":
		logging.Warn().Msg("using in-memory storage, data is lost on restart and rate limiting is disabled")
		mem := store.NewMemory()
		return &stores{users: mem, queue: mem}, nil
	case "redis", "":
		client, err := utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rs := store.NewRedis(client)
		return &stores{users: rs, queue: rs, redis: client}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newPublisher(cfg *config.Config) notify.Publisher {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		logging.Warn().Msg("pubnub keys not set, display events are disabled")
		return notify.Noop{}
	}
	return notify.NewPubNub(notify.PubNubConfig{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
		UserID:       cfg.PubNubUserID,
		Channel:      cfg.DisplayChannel,
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logging.Info().Msg("shutdown signal received, cleaning up")
	stop()
}

func shutdown(cancel context.CancelFunc, metricsSrv *http.Server) {
	cancel()
	if metricsSrv == nil {
		return
	}

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("metrics server shutdown")
	}
}
