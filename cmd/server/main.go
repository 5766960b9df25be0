package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ndertimnet/leadengine/internal/config"
	"github.com/ndertimnet/leadengine/internal/contract"
	"github.com/ndertimnet/leadengine/internal/db"
	httpHandlers "github.com/ndertimnet/leadengine/internal/http/handlers"
	httpRouter "github.com/ndertimnet/leadengine/internal/http/router"
	"github.com/ndertimnet/leadengine/internal/logger"
	"github.com/ndertimnet/leadengine/internal/repository"
	"github.com/ndertimnet/leadengine/internal/service"
	"github.com/ndertimnet/leadengine/internal/sweep"
	"github.com/ndertimnet/leadengine/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Репозитории.
	identityRepo := repository.NewIdentityRepository(dbConn)
	jobRepo := repository.NewJobRequestRepository(dbConn)
	offerRepo := repository.NewOfferRepository(dbConn)
	leadRepo := repository.NewLeadAccessRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)

	// Вебсокеты: события по офертам уходят подписчикам заявок.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	leadService := service.NewLeadAccessService(leadRepo, jobRepo, paymentRepo)
	offerService := service.NewOfferService(offerRepo, jobRepo, leadRepo, paymentRepo, identityRepo, hub, cfg.ChatUnlockAmount, cfg.ChatUnlockCurrency)
	jobService := service.NewJobRequestService(jobRepo, offerRepo, identityRepo, hub, cfg.MaxOffersDefault, cfg.ReopenExtraOffers, cfg.JobExpiryDays, cfg.JobEditWindow, cfg.StaleReopenAfter)
	paymentService := service.NewPaymentService(paymentRepo, leadRepo, offerRepo, jobRepo, cfg.LeadUnlockAmount, cfg.ChatUnlockAmount, cfg.ChatUnlockCurrency)

	// Периодические проходы: закрытие истёкших заявок и авто-рихап.
	sweeper := sweep.New(jobService, cfg.SweepSchedule)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("main: не удалось запустить планировщик: %v", err)
	}
	defer sweeper.Stop()

	// HTTP хэндлеры.
	jobHandler := httpHandlers.NewJobRequestHandler(jobService)
	offerHandler := httpHandlers.NewOfferHandler(offerService, jobService, contract.NewTextRenderer())
	leadHandler := httpHandlers.NewLeadHandler(leadService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager, identityRepo, jobService, leadService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, jobHandler, offerHandler, leadHandler, paymentHandler, wsHandler, healthHandler, tokenManager, identityRepo)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
