package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	discordrouter "github.com/jose-valero/office-hours-bot/internal/adapters/discord"
	"github.com/jose-valero/office-hours-bot/internal/adapters/httpapi"
	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
	"github.com/jose-valero/office-hours-bot/internal/infra/config"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

func main() {
	envFile := pflag.String("env-file", ".env", "archivo .env a cargar (si existe)")
	migrateOnly := pflag.Bool("migrate-only", false, "aplica migraciones y sale")
	skipRegister := pflag.Bool("skip-register", false, "no re-registra los slash commands")
	pflag.Parse()

	_ = godotenv.Load(*envFile)
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// DB
	db, err := storage.Open(context.Background(), cfg.DatabaseURL, storage.PoolOptions{})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal("migrate: ", err)
	}
	logger.Info("db ready")
	if *migrateOnly {
		return
	}

	// Discord session
	auth := strings.TrimSpace(cfg.DiscordToken)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Fatal(err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers
	s.State.TrackVoice = true

	// Engine
	gw := discordrouter.NewGateway(s, cfg.AdminRoleIDs, logger)
	notifier := discordrouter.NewNotifier(s, logger)
	eng := service.NewEngine(service.Deps{
		Guilds:   storage.NewGuildRepo(db),
		Rooms:    storage.NewRoomRepo(db),
		Sessions: storage.NewSessionRepo(db),
		Gateway:  gw,
		Notifier: notifier,
	}, service.WithLogger(logger), service.WithClock(clock.Real()))

	r := discordrouter.NewRouter(s, eng, gw, storage.NewPanelRepo(db), discordrouter.Config{
		GuildID:                    cfg.DiscordGuild,
		AdminRoleIDs:               cfg.AdminRoleIDs,
		DefaultDisconnectTimeoutMs: cfg.DefaultDisconnectTimeoutMs,
		Logger:                     logger,
	})
	notifier.OnQueueChange(r.RefreshPanel)
	r.Handlers()

	if err := s.Open(); err != nil {
		log.Fatal(err)
	}
	logger.Info("connected", "user", s.State.User.Username, "id", s.State.User.ID)

	if !*skipRegister {
		if err := r.Register(); err != nil {
			log.Fatalf("registrando comandos: %v", err)
		}
		logger.Info("commands registered", "guild", cfg.DiscordGuild)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		go func() {
			if err := httpapi.New(db, eng.Queues, logger).Start(ctx, cfg.HTTPAddr); err != nil {
				logger.Error("http server", "err", err)
			}
		}()
	}

	// Esperar señal
	<-ctx.Done()
	logger.Info("shutting down")
	// primero cortar el gateway, después terminar las transiciones encoladas
	_ = s.Close()
	eng.Presence.Drain()
}
