package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

// atajos de tunning
const (
	uiDebounce   = 250 * time.Millisecond
	ctxRenderMax = 3 * time.Second
	panelMaxRows = 25
)

// PanelStore guarda dónde está publicado el panel de cada cola.
type PanelStore interface {
	Get(ctx context.Context, guildID, queueID string) (storage.QueuePanel, error)
	Upsert(ctx context.Context, p storage.QueuePanel) error
	Delete(ctx context.Context, guildID, queueID string) error
}

// publishPanel publica (o re-publica) el panel de la cola en ESTE canal.
func (r *Router) publishPanel(ctx context.Context, guildID, channelID string, q *domain.Queue) error {
	embed, comps := renderPanel(q, r.eng.Queues.GetSortedEntries(q, panelMaxRows), r.eng.Queues.IsPendingRemoval, r.clock.Now())
	msg, err := r.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{comps},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	return r.panels.Upsert(ctx, storage.QueuePanel{GuildID: guildID, QueueID: q.ID, ChannelID: channelID, MessageID: msg.ID})
}

// RefreshPanel agenda un repaint del panel con debounce por cola.
func (r *Router) RefreshPanel(guildID, queueID string) {
	key := guildID + "/" + queueID
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	if t, ok := r.refreshTimers[key]; ok {
		t.Stop()
	}
	var t *clock.Timer
	t = r.clock.AfterFunc(uiDebounce, func() {
		r.refreshMu.Lock()
		if r.refreshTimers[key] == t {
			delete(r.refreshTimers, key)
		}
		r.refreshMu.Unlock()
		r.repaint(guildID, queueID)
	})
	r.refreshTimers[key] = t
}

func (r *Router) refreshGuildPanels(guildID string) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxRenderMax)
	defer cancel()
	qs, err := r.eng.Queues.ListQueues(ctx, guildID)
	if err != nil {
		r.log.Warn("list queues for panel refresh", "guild", guildID, "err", err)
		return
	}
	for _, q := range qs {
		r.RefreshPanel(guildID, q.ID)
	}
}

func (r *Router) repaint(guildID, queueID string) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxRenderMax)
	defer cancel()
	log := r.log.With("guild", guildID, "queue", queueID)
	defer step(log, "ui.repaint")()

	p, err := r.panels.Get(ctx, guildID, queueID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn("panel lookup failed", "err", err)
		return
	}
	q, err := r.eng.Queues.GetQueueByID(ctx, guildID, queueID)
	if errors.Is(err, domain.ErrCouldNotFindQueue) {
		_ = r.panels.Delete(ctx, guildID, queueID)
		return
	}
	if err != nil {
		log.Warn("panel queue load failed", "err", err)
		return
	}

	embed, comps := renderPanel(q, r.eng.Queues.GetSortedEntries(q, panelMaxRows), r.eng.Queues.IsPendingRemoval, r.clock.Now())
	em := []*discordgo.MessageEmbed{embed}
	cc := []discordgo.MessageComponent{comps}
	_, err = r.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    p.ChannelID,
		ID:         p.MessageID,
		Embeds:     &em,
		Components: &cc,
	}, discordgo.WithContext(ctx))
	if err == nil {
		return
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		log.Warn("panel edit failed",
			"status", re.Response.StatusCode,
			"retry_after", re.Response.Header.Get("Retry-After"),
			"bucket", re.Response.Header.Get("X-RateLimit-Bucket"),
			"body", string(re.ResponseBody))
		if re.Message != nil && re.Message.Code == discordgo.ErrCodeUnknownMessage {
			_ = r.panels.Delete(ctx, guildID, queueID)
		}
		return
	}
	log.Warn("panel edit failed", "err", err)
}

// renderPanel arma el embed y los botones de una cola.
func renderPanel(q *domain.Queue, entries []domain.QueueEntry, pending func(queueID, userID string) bool, now time.Time) (*discordgo.MessageEmbed, discordgo.ActionsRow) {
	title := "🎓 " + q.Name
	if q.Locked {
		title += " 🔒"
	}
	var desc strings.Builder
	if q.Description != "" {
		desc.WriteString(q.Description)
		desc.WriteString("\n\n")
	}
	desc.WriteString(formatEntries(q.ID, entries, pending))

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc.String(),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d en espera · entra al canal de voz de la cola para unirte", len(q.Entries)),
		},
		Timestamp: now.Format(time.RFC3339),
	}
	comps := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Style:    discordgo.SecondaryButton,
				Label:    "Salir",
				CustomID: customID(componentQueueLeave, q.ID),
				Emoji:    &discordgo.ComponentEmoji{Name: "👋"},
			},
			discordgo.Button{
				Style:    discordgo.SecondaryButton,
				Label:    "Admin",
				CustomID: customID(componentAdminPanel, q.ID),
				Emoji:    &discordgo.ComponentEmoji{Name: "👮"},
			},
		},
	}
	return embed, comps
}

func formatEntries(queueID string, entries []domain.QueueEntry, pending func(queueID, userID string) bool) string {
	if len(entries) == 0 {
		return "Nadie en cola."
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d) %s · <t:%d:R>", i+1, mentionOf(e.UserID), e.JoinedAt.Unix())
		if pending != nil && pending(queueID, e.UserID) {
			b.WriteString(" (desconectado)")
		}
		b.WriteString("\n")
	}
	return b.String()
}
