package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/configstore"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/registry"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
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
		if err := pg.EnsureSchema(ctx, logger); err != nil {
			logger.Fatal("failed to prepare archive schema", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	store := configstore.NewRedisStore(redis.Client)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to build discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}
	defer session.Close()

	discord := gateway.NewDiscord(session, cfg.Discord.GuildID, logger)

	tickets, err := registry.NewTicketRegistry(filepath.Join(cfg.Storage.DataDir, "tickets.json"))
	if err != nil {
		logger.Fatal("failed to load ticket registry", zap.Error(err))
	}
	index, err := registry.NewUserTicketIndex(filepath.Join(cfg.Storage.DataDir, "user_index.json"))
	if err != nil {
		logger.Fatal("failed to load user index", zap.Error(err))
	}

	clock := service.SystemClock()
	timers := service.NewTimerRegistry(clock)
	transcripts := service.NewTranscriptGenerator(discord, clock, cfg.Storage.TranscriptDir, logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	var archive repository.ArchiveRepository
	if pool := pg.PoolHandle(); pool != nil {
		archive = repository.NewArchiveRepository(pool)
	}

	lifecycle := service.NewTicketLifecycle(service.LifecycleDependencies{
		Gateway:     discord,
		ConfigStore: store,
		Tickets:     tickets,
		Index:       index,
		Timers:      timers,
		Transcripts: transcripts,
		Archive:     archive,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Clock:       clock,
		DeleteDelay: cfg.Storage.DeleteDelay(),
	})

	audit := service.NewAuditService(dispatcher, logger)
	audit.RegisterHandlers()

	lifecycle.RearmTimers(ctx)

	discord.OnInteraction(interactionHandler(lifecycle, tickets, logger))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(tokens, cfg.Auth.AdminKeyHash),
		Tickets:        handlers.NewTicketsHandler(lifecycle, store, archive, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	logger.Info("ticket bot running",
		zap.String("guild_id", cfg.Discord.GuildID),
		zap.String("admin_addr", cfg.App.Addr()))

	waitForShutdown(logger)

	lifecycle.Shutdown()
	_ = app.Shutdown()
}

// interactionHandler routes component interactions to lifecycle operations.
// Each interaction runs with its own timeout; the discord adapter already
// acknowledged the component before this is invoked.
func interactionHandler(lifecycle *service.TicketLifecycle, tickets *registry.TicketRegistry, logger *zap.Logger) gateway.InteractionHandler {
	return func(interaction gateway.Interaction) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var err error
		switch interaction.Kind {
		case gateway.InteractionPanelOpen:
			_, err = lifecycle.Create(ctx, interaction.UserID, "")
		case gateway.InteractionPanelSelect:
			ticketType := ""
			if len(interaction.Values) > 0 {
				ticketType = interaction.Values[0]
			}
			_, err = lifecycle.Create(ctx, interaction.UserID, ticketType)
		case gateway.InteractionClose:
			if ticket, ok := tickets.GetByChannel(interaction.ChannelID); ok {
				err = lifecycle.RequestClose(ctx, ticket.ID, interaction.UserID, "")
			}
		case gateway.InteractionCloseConfirm:
			if ticket, ok := tickets.GetByChannel(interaction.ChannelID); ok {
				err = lifecycle.ConfirmClose(ctx, ticket.ID)
			}
		case gateway.InteractionCloseCancel:
			if ticket, ok := tickets.GetByChannel(interaction.ChannelID); ok {
				err = lifecycle.CancelClose(ctx, ticket.ID)
			}
		case gateway.InteractionAddUser:
			if ticket, ok := tickets.GetByChannel(interaction.ChannelID); ok && len(interaction.Values) > 0 {
				err = lifecycle.AddUser(ctx, ticket.ID, interaction.Values[0])
			}
		case gateway.InteractionTranscript:
			if ticket, ok := tickets.GetByChannel(interaction.ChannelID); ok {
				_, err = lifecycle.GenerateTranscript(ctx, ticket.ID)
			}
		default:
			return
		}

		if err != nil {
			logger.Warn("interaction failed",
				zap.String("kind", interaction.Kind.String()),
				zap.String("channel_id", interaction.ChannelID),
				zap.String("user_id", interaction.UserID),
				zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
