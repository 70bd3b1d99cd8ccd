package discord

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
)

const (
	clickWindow  = time.Second
	commandMax   = 12 * time.Second
	componentMax = 8 * time.Second
)

// Config del router. Los campos vacíos toman defaults.
type Config struct {
	// GuildID donde se registran los slash commands ("" = globales).
	GuildID                    string
	AdminRoleIDs               []string
	DefaultDisconnectTimeoutMs int64
	Clock                      clock.Clock
	Logger                     *slog.Logger
}

type Router struct {
	s       *discordgo.Session
	guildID string

	eng    *service.Engine
	gw     *Gateway
	panels PanelStore

	adminRoleIDs   []string
	defaultTimeout int64
	clickLimiter   *userLimiter
	clock          clock.Clock
	log            *slog.Logger

	commands   map[string]Command
	components map[ComponentKey]ComponentHandler

	refreshMu     sync.Mutex
	refreshTimers map[string]*clock.Timer
}

func NewRouter(s *discordgo.Session, eng *service.Engine, gw *Gateway, panels PanelStore, cfg Config) *Router {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Router{
		s:              s,
		guildID:        cfg.GuildID,
		eng:            eng,
		gw:             gw,
		panels:         panels,
		adminRoleIDs:   cfg.AdminRoleIDs,
		defaultTimeout: cfg.DefaultDisconnectTimeoutMs,
		clickLimiter:   newUserLimiter(clickWindow, cfg.Clock),
		clock:          cfg.Clock,
		log:            cfg.Logger.With("component", "router"),
		refreshTimers:  map[string]*clock.Timer{},
	}
	r.commands = make(map[string]Command)
	for _, c := range r.commandTable() {
		r.commands[c.Key] = c
	}
	r.components = map[ComponentKey]ComponentHandler{
		componentQueueLeave: r.onQueueLeave,
		componentAdminPanel: r.onAdminPanel,
		componentKickSelect: r.onKickSelect,
	}
	return r
}

// Register reemplaza los slash commands del guild por los actuales.
func (r *Router) Register() error {
	appID := r.s.State.User.ID
	_, err := r.s.ApplicationCommandBulkOverwrite(appID, r.guildID, Commands)
	return err
}

// Handlers engancha los handlers. Los eventos llegan en orden (SyncEvents)
// para que las transiciones de voz entren a la fila del guild tal cual las
// manda el gateway; las interacciones se despachan en su propia goroutine
// para no frenar el loop.
func (r *Router) Handlers() {
	r.s.SyncEvents = true
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Member == nil || ic.Member.User == nil {
			return
		}
		switch ic.Type {
		case discordgo.InteractionApplicationCommand:
			go r.handleSlashCommand(s, ic)
		case discordgo.InteractionMessageComponent:
			go r.handleMessageComponent(s, ic)
		}
	})
	r.s.AddHandler(r.onVoiceState)
}

// onVoiceState: cada VoiceStateUpdate es una transición old → new. No
// bloquea: la encola en la fila FIFO del guild.
func (r *Router) onVoiceState(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || (vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot) {
		return
	}
	r.eng.Presence.Submit(voiceTransition(vs))
}

func voiceTransition(vs *discordgo.VoiceStateUpdate) service.Transition {
	var t service.Transition
	if vs.VoiceState != nil {
		t.GuildID, t.UserID, t.NewChannelID = vs.GuildID, vs.UserID, vs.ChannelID
	}
	if vs.BeforeUpdate != nil {
		t.OldChannelID = vs.BeforeUpdate.ChannelID
	}
	return t
}

func (r *Router) newCtx(s *discordgo.Session, ic *discordgo.InteractionCreate, log *slog.Logger) *Ctx {
	return &Ctx{
		Log:     log,
		Session: s,
		Event:   ic,
		GuildID: ic.GuildID,
		UserID:  ic.Member.User.ID,
		Member:  toMember(s, ic.GuildID, ic.Member, r.adminRoleIDs),
	}
}

// reply responde el resultado del handler; los errores pasan por describeError.
func (r *Router) reply(s *discordgo.Session, ic *discordgo.InteractionCreate, log *slog.Logger, msg string, err error) {
	if err != nil {
		logHandlerError(log, err)
		msg = describeError(err)
	}
	if msg == "" {
		msg = "✅ Listo."
	}
	ReplyEphemeral(s, ic, msg)
}
