package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

type Ctx struct {
	Log     *slog.Logger
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	GuildID string
	UserID  string
	Member  domain.Member
	// Arg: lo que viene después de ":" en el custom_id (components)
	Arg string
}

// CommandHandler devuelve el texto a responder (efímero).
type CommandHandler func(ctx context.Context, c *Ctx) (string, error)

type Command struct {
	// Key: "queue/create", "pick", ...
	Key       string
	AdminOnly bool
	Handler   CommandHandler
}

type ComponentHandler func(ctx context.Context, c *Ctx) (string, error)

// ComponentKey: prefijo del custom_id (ej: "queue_leave" en "queue_leave:<qid>")
type ComponentKey string

const (
	componentQueueLeave ComponentKey = "queue_leave"
	componentAdminPanel ComponentKey = "admin_panel"
	componentKickSelect ComponentKey = "kick_select"
)

func customID(k ComponentKey, arg string) string { return string(k) + ":" + arg }
