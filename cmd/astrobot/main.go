package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/astro/ephem"
	"github.com/sssm0ulder/astrobot-sub000/internal/astro/tz"
	"github.com/sssm0ulder/astrobot-sub000/internal/cache"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/forecast"
	"github.com/sssm0ulder/astrobot-sub000/internal/gateway"
	"github.com/sssm0ulder/astrobot-sub000/internal/interpretation"
	"github.com/sssm0ulder/astrobot-sub000/internal/notification"
	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
	"github.com/sssm0ulder/astrobot-sub000/internal/queue"
	"github.com/sssm0ulder/astrobot-sub000/internal/scheduler"
	"github.com/sssm0ulder/astrobot-sub000/internal/subscription"
	"github.com/sssm0ulder/astrobot-sub000/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := config.LoadApp(cfg.AppConfigPath)
	if err != nil {
		log.Fatalf("Failed to load application config: %v", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting astrobot")

	// Database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	cancelPing()

	// Kafka topics
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicForecasts, cfg.Kafka.NumPartitions, 1); err != nil {
		logger.Warn("topic creation failed, may already exist",
			zap.String("topic", cfg.Kafka.TopicForecasts), zap.Error(err))
	}
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicOps, 1, 1); err != nil {
		logger.Warn("topic creation failed, may already exist",
			zap.String("topic", cfg.Kafka.TopicOps), zap.Error(err))
	}

	forecastProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicForecasts)
	defer forecastProducer.Close()
	opsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOps)
	defer opsProducer.Close()

	// Astro core
	timezones, err := tz.NewService()
	if err != nil {
		logger.Fatal("failed to build timezone service", zap.Error(err))
	}

	adapter, err := ephem.New()
	if err != nil {
		logger.Fatal("failed to build ephemeris", zap.Error(err))
	}
	engine := astro.NewEngine(adapter)

	interp := interpretation.NewStore(db, logger)
	builder := forecast.NewBuilder(engine, interp, logger)
	forecastCache := cache.NewForecastCache(redisClient)

	// Scheduled forecast dispatch
	sched := scheduler.New(db, timezones, builder, forecastProducer, opsProducer, logger,
		app.Subscription.TestPeriodInDays, app.Database.DateFormat, app.Database.TimeFormat)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Subscription expiry reminders
	evaluator := subscription.NewEvaluator(db, forecastCache, opsProducer, logger,
		app.Subscription.TestPeriodInDays)
	evaluator.Start(context.Background())
	defer evaluator.Stop()

	// Gateway
	conns := gateway.NewConns(cfg.Gateway.MaxConnections)
	timers := scheduler.NewTimers()
	timers.Start()
	defer timers.Stop()

	handler := gateway.NewHandler(db, forecastCache, timezones, builder, engine, logger,
		app.Database.DateFormat, app.Database.TimeFormat)

	var gw gatewayServer
	if cfg.Gateway.UseWorkerPool {
		gw = gateway.NewWorkerPoolServer(&cfg.Gateway, conns, timers, handler, logger)
	} else {
		gw = gateway.NewServer(&cfg.Gateway, conns, timers, handler, logger)
	}
	if err := gw.Start(); err != nil {
		logger.Fatal("failed to start gateway", zap.Error(err))
	}
	defer gw.Stop()

	// Push delivery to connected frontends
	pushConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicForecasts, "gateway-push")
	defer pushConsumer.Close()
	pusher := gateway.NewPusher(pushConsumer, gw, logger)
	pusher.Start()
	defer pusher.Stop()

	// Delivery history recording
	recordConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicForecasts, "dispatch-recorder")
	defer recordConsumer.Close()
	dispatcher := queue.NewDispatcher(recordConsumer, db, logger, cfg.Kafka.BatchSize, 5*time.Second)
	if err := dispatcher.Start(context.Background()); err != nil {
		logger.Fatal("failed to start dispatch recorder", zap.Error(err))
	}
	defer dispatcher.Stop()

	// Admin email alerts
	opsConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOps, "ops-alerter")
	defer opsConsumer.Close()
	alerter := notification.NewAlerter(opsConsumer, notification.NewEmailNotifier(&cfg.SMTP, logger), logger)
	alerter.Start()
	defer alerter.Stop()

	logger.Info("astrobot is running",
		zap.Int("gateway_port", cfg.Gateway.Port),
		zap.Int("pending_dispatches", sched.Pending()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
}

type gatewayServer interface {
	Start() error
	Stop()
	PushToChat(chatID int64, push *protocol.PushMessage) int
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
