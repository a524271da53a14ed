package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	discordapi "github.com/spec-kit/ticket-bot/internal/api/discord"
	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
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

	if cfg.Discord.Token == "" {
		logger.Fatal("DISCORD_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, events.NewRedisPublisher(redis, cfg.Redis.EventChannel), logger)
	worker.StartNotificationWorker(notificationService)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	client := platform.NewDiscord(session)
	guildRepo := repository.NewGuildRepository(docs)
	ticketRepo := repository.NewActiveTicketRepository(docs)

	ticketService := service.NewTicketService(service.TicketDependencies{
		GuildRepo:  guildRepo,
		TicketRepo: ticketRepo,
		Platform:   client,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Ticket,
	})
	guildService := service.NewGuildService(service.GuildDependencies{
		GuildRepo:     guildRepo,
		Platform:      client,
		Logger:        logger,
		PromptTimeout: cfg.Ticket.PromptTimeout,
	})

	discordapi.NewRouter(discordapi.RouterDependencies{
		TicketService: ticketService,
		GuildService:  guildService,
		Platform:      client,
		Logger:        logger,
	}).Register(session)

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord gateway", zap.Error(err))
	}
	defer session.Close() //nolint:errcheck
	logger.Info("discord gateway connected", zap.String("bot_user_id", client.BotUserID()))

	appID := cfg.Discord.ApplicationID
	if appID == "" {
		appID = session.State.User.ID
	}
	if err := discordapi.RegisterCommands(session, appID, cfg.Discord.DevGuildID); err != nil {
		logger.Error("failed to register commands", zap.Error(err))
	}

	authService := service.NewAuthService(cfg.Auth)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.Dependency{Name: "store", Pinger: docs},
			handlers.Dependency{Name: "redis", Pinger: redis},
		),
		Auth:           handlers.NewAuthHandler(authService),
		Guilds:         handlers.NewGuildsHandler(guildService),
		Tickets:        handlers.NewTicketsHandler(ticketService, cfg.Ticket.TranscriptTimezone),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(5 * time.Second)
}

// openStore connects the configured document store backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Documents, func()) {
	switch cfg.Store.Backend {
	case config.StoreBackendMongo:
		mongo, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongodb", zap.Error(err))
		}
		return mongo.Documents(), func() { mongo.Close(context.Background()) }
	case config.StoreBackendMemory:
		logger.Warn("using in-memory store; ticket data is lost on restart")
		return persistence.NewMemoryDocuments(), func() {}
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		docs, err := pg.Documents()
		if err != nil {
			logger.Fatal("postgres store unavailable", zap.Error(err))
		}
		return docs, pg.Close
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
