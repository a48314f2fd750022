package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/linemk/shop-bot/internal/app"
	"github.com/linemk/shop-bot/internal/app/handlers"
	"github.com/linemk/shop-bot/internal/config"
	"github.com/linemk/shop-bot/internal/conversation"
	"github.com/linemk/shop-bot/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/shop-bot/internal/lib/logger"
	"github.com/linemk/shop-bot/internal/lib/logger/handlers/urllog"
	"github.com/linemk/shop-bot/internal/notifier"
	"github.com/linemk/shop-bot/internal/service"
	"github.com/linemk/shop-bot/internal/session"
	"github.com/linemk/shop-bot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// подключения к Postgres и Redis
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	// уведомления: Telegram → circuit breaker → очередь с воркерами
	telegram, err := notifier.NewTelegramClient(cfg.Bot.APIURL, cfg.Bot.Token, cfg.Bot.NotifyTimeout)
	if err != nil {
		log.Error("failed to create telegram client", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to create telegram client"))
	}
	breaker := notifier.NewBreakerSender(log, telegram, notifier.BreakerSettings{
		ConsecutiveFailures: cfg.Bot.BreakerFailures,
		OpenTimeout:         cfg.Bot.BreakerOpenTimeout,
	})
	queue := notifier.NewQueue(log, breaker, notifier.QueueConfig{
		Workers:  cfg.Bot.NotifyWorkers,
		Size:     cfg.Bot.NotifyQueueSize,
		Timeout:  cfg.Bot.NotifyTimeout,
		Attempts: cfg.Bot.NotifyAttempts,
		Backoff:  cfg.Bot.NotifyBackoff,
	})
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	queue.Start(workersCtx)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	userService := service.NewUserService(log, userRepo, cfg.Bot.AdminIDs)
	catalogService := service.NewCatalogService(log, productRepo)
	cartService := service.NewCartService(log, application.DB, userRepo, productRepo, cartRepo)
	orderService := service.NewOrderService(log, application.DB, userRepo, cartRepo, orderRepo, queue)
	authService := service.NewAuthService(log, cfg.Admin.Username, cfg.Admin.PasswordHash,
		cfg.JWT.Secret, time.Duration(cfg.JWT.TokenTTL)*time.Minute)

	// диалог: сессии в Redis, события одного пользователя — по очереди
	engine := conversation.NewEngine(log, userService, catalogService, cartService, orderService)
	sessions := session.NewStore[conversation.Session](application.Redis, cfg.Redis.SessionTTL)
	dispatcher := conversation.NewDispatcher(log, engine, sessions, cfg.Bot.RateLimit)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// эндпоинт для аутентификации оператора
	router.Post("/api/auth", handlers.AuthHandler(log, authService))
	// события от транспорта бота
	router.Post("/api/bot/events", handlers.BotEventsHandler(log, dispatcher, cfg.Bot.WebhookSecret))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret))
		r.Get("/api/orders", handlers.OrdersHandler(log, orderService))
		r.Post("/api/change-status", handlers.ChangeStatusHandler(log, orderService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	// после остановки HTTP новых уведомлений нет — дожидаемся отправки очереди
	if err := queue.Stop(ctx); err != nil {
		log.Error("notification queue shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
