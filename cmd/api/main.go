package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/servicedesk/internal/api/http"
	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/chat"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/listener"
	"github.com/spec-kit/servicedesk/internal/messaging"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/persistence"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	"github.com/spec-kit/servicedesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisStore := persistence.NewRedis(cfg.Redis, logger)
	defer redisStore.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	logRepo := repository.NewTicketLogRepository(pool)
	slaRepo := repository.NewSLARepository(pool)
	serviceItemRepo := repository.NewServiceItemRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	commentRepo := repository.NewTicketCommentRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	gateway := messaging.NewHTTPGateway(cfg.Notification, logger)

	hub := chat.NewHub(logger)
	go hub.Run(ctx)

	slaService := service.NewSLAService(slaRepo, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      ticketRepo,
		ServiceItemRepo: serviceItemRepo,
		ApprovalRepo:    approvalRepo,
		LogRepo:         logRepo,
		SLA:             slaService,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		ApprovalRepo: approvalRepo,
		TicketRepo:   ticketRepo,
		LogRepo:      logRepo,
		Logger:       logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Gateway:          gateway,
		Config:           cfg.Notification,
		Metrics:          metrics,
		Logger:           logger,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		ChatRepo:    chatRepo,
		CommentRepo: commentRepo,
		TicketRepo:  ticketRepo,
		LogRepo:     logRepo,
		UserRepo:    userRepo,
		Broadcaster: hub,
		Logger:      logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	worker.StartNotificationWorker(notificationService, dispatcher)
	feed := listener.New(pool, redisStore.Client, ticketRepo, dispatcher, cfg.Notification, logger)
	worker.StartChangeFeed(ctx, feed, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(pg, redisStore, cfg.App.Version),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Approvals:      handlers.NewApprovalsHandler(approvalService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Chat:           handlers.NewChatHandler(chatService),
		Gateway:        handlers.NewGatewayHandler(gateway),
		ChatSocket:     chat.NewHandler(hub, chatService, ticketRepo, userRepo, authMiddleware, cfg.Chat, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
