package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/domain"
)

var _ service.Notifier = (*Notifier)(nil)

// Notifier entrega las notificaciones del engine: DM al usuario y copia en
// los canales de info suscritos al evento.
type Notifier struct {
	out      messenger
	log      *slog.Logger
	onChange func(guildID, queueID string)
}

func NewNotifier(s *discordgo.Session, log *slog.Logger) *Notifier {
	return newNotifier(sessionMessenger{s: s}, log)
}

func newNotifier(out messenger, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{out: out, log: log.With("component", "notifier")}
}

// OnQueueChange registra el callback que refresca el panel de la cola.
func (n *Notifier) OnQueueChange(fn func(guildID, queueID string)) { n.onChange = fn }

func (n *Notifier) Notify(ctx context.Context, nt service.Notification) error {
	content := nt.Content
	if nt.Event == domain.EventError {
		content = describeError(nt.Err)
	}

	var errs []error
	if nt.UserID != "" && content != "" {
		if err := n.out.DM(ctx, nt.UserID, content); err != nil {
			errs = append(errs, fmt.Errorf("dm %s: %w", nt.UserID, err))
		}
	}

	if nt.Queue != nil {
		for _, ic := range nt.Queue.InfoChannels {
			if !ic.Subscribed(nt.Event) {
				continue
			}
			line := fmt.Sprintf("**%s** · %s · %s", nt.Queue.Name, nt.Event, mentionOf(nt.UserID))
			if err := n.out.Send(ctx, ic.ChannelID, line); err != nil {
				errs = append(errs, fmt.Errorf("info channel %s: %w", ic.ChannelID, err))
			}
		}
		if n.onChange != nil && nt.Event != domain.EventError {
			n.onChange(nt.GuildID, nt.Queue.ID)
		}
	}

	if len(errs) > 0 {
		n.log.Debug("notify partial failure", "guild", nt.GuildID, "user", nt.UserID, "event", nt.Event, "errors", len(errs))
	}
	return errors.Join(errs...)
}
