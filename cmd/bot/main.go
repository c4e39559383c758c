package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/app"
	"github.com/Freeeeeet/lesson_booking/internal/config"
	"github.com/Freeeeeet/lesson_booking/internal/controller"
	"github.com/Freeeeeet/lesson_booking/internal/controller/httpapi"
	"github.com/Freeeeeet/lesson_booking/internal/payment"
	"github.com/Freeeeeet/lesson_booking/internal/queue"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	defer logger.Sync()

	logger.Sugar().Infow("Starting lesson booking engine",
		"environment", cfg.Environment,
		"http_addr", cfg.HTTPAddr,
		"telegram", cfg.TelegramToken != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// База данных
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator", zap.Error(err))
	}

	// Кэш слотов
	var slotCache service.SlotCache = service.NopSlotCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, slot cache disabled", zap.Error(err))
		} else {
			slotCache = repository.NewSlotCache(redisClient, cfg.SlotCacheTTL)
		}
	}

	// Репозитории
	userRepo := repository.NewUserRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	reminderRepo := repository.NewReminderRepository(pool)

	// Исходящие события
	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := queue.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("Failed to connect publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	}

	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY is empty, payouts will fail and be retried")
	}

	// Сервисы
	userService := service.NewUserService(userRepo, slotCache, logger, time.Now)
	escrowService := service.NewEscrowService(
		bookingRepo,
		userRepo,
		payment.NewStripePayouter(cfg.StripeSecretKey),
		cfg.PayoutCurrency,
		logger,
		time.Now,
	)
	bookingService := service.NewBookingService(bookingRepo, userRepo, escrowService, slotCache, publisher, logger, time.Now)
	bookingService.EnableAsyncSettlement()
	rescheduleService := service.NewRescheduleService(bookingRepo, slotCache, logger, time.Now)
	availabilityService := service.NewAvailabilityService(userRepo, bookingRepo, slotCache, logger, time.Now)
	reminderService := service.NewReminderService(reminderRepo, bookingRepo, logger, time.Now)

	// HTTP API
	services := httpapi.Services{
		Bookings:     bookingService,
		Reschedules:  rescheduleService,
		Availability: availabilityService,
		Users:        userService,
		Reminders:    reminderService,
	}
	if cfg.StripeWebhookSecret != "" {
		services.Webhooks = payment.NewWebhookParser(cfg.StripeWebhookSecret)
	}
	server := httpapi.NewServer(services, cfg.JWTSecret, logger)
	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	// Telegram бот, он же доставляет напоминания
	var sender service.ReminderSender
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}

		botController := controller.NewBotController(b, userService, bookingService, rescheduleService, availabilityService, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Failed to register bot commands menu", zap.Error(err))
		}
		sender = controller.NewNotifier(b, userService, logger)

		go func() {
			if err := botController.Start(ctx); err != nil {
				logger.Error("Bot stopped", zap.Error(err))
			}
		}()
	}

	// Входящие оплаты из очереди
	if cfg.RabbitMQURL != "" {
		consumer := queue.NewConsumer(cfg.RabbitMQURL, bookingService, logger)
		go consumer.Run(ctx)
	}

	scheduler := app.NewScheduler(
		reminderService,
		escrowService,
		sender,
		cfg.ReminderPollInterval,
		cfg.SettlementRetryInterval,
		logger,
	)
	scheduler.Start(ctx)

	logger.Info("✅ Lesson booking engine started")
	<-ctx.Done()

	logger.Info("Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	bookingService.WaitSettlements()
}
