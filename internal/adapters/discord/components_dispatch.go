package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()
	key, arg, _ := strings.Cut(data.CustomID, ":")
	log := r.log.With("component_id", key, "user", ic.Member.User.ID, "guild", ic.GuildID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in component", "panic", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado.")
		}
	}()

	_ = DeferEphemeral(s, ic)

	h, ok := r.components[ComponentKey(key)]
	if !ok {
		ReplyEphemeral(s, ic, "⚠️ Este botón ya no está disponible.")
		return
	}
	if !r.clickLimiter.Allow(ic.Member.User.ID) {
		ReplyEphemeral(s, ic, "⏳ Espera un segundo…")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), componentMax)
	defer cancel()

	c := r.newCtx(s, ic, log)
	c.Arg = arg
	msg, err := h(ctx, c)
	if err == nil && msg == "" {
		// el handler ya respondió
		return
	}
	r.reply(s, ic, log, msg, err)
}

func (r *Router) onQueueLeave(ctx context.Context, c *Ctx) (string, error) {
	msg, err := r.eng.Queues.LeaveQueue(ctx, c.GuildID, c.UserID)
	if err != nil {
		return "", err
	}
	r.refreshGuildPanels(c.GuildID)
	return msg, nil
}

//--> solo admins
func (r *Router) onAdminPanel(ctx context.Context, c *Ctx) (string, error) {
	if !r.requireAdmin(c.Session, c.Event) {
		return "", nil
	}
	q, err := r.eng.Queues.GetQueueByID(ctx, c.GuildID, c.Arg)
	if err != nil {
		return "", err
	}
	entries := r.eng.Queues.GetSortedEntries(q, 25)
	if len(entries) == 0 {
		return "", domain.NewError(domain.KindQueueIsEmpty, q.ID)
	}

	_, err = c.Session.FollowupMessageCreate(c.Event.Interaction, true, &discordgo.WebhookParams{
		Content:    fmt.Sprintf("Elige a quién sacar de **%s**:", q.Name),
		Components: []discordgo.MessageComponent{kickMenu(q.ID, entries, r.memberLabel(ctx, c.GuildID))},
		Flags:      discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		return "", err
	}
	return "", nil
}

func (r *Router) memberLabel(ctx context.Context, guildID string) func(userID string) string {
	return func(userID string) string {
		m, err := r.gw.Member(ctx, guildID, userID)
		if err != nil || m.DisplayName == "" {
			return userID
		}
		return m.DisplayName
	}
}

func kickMenu(queueID string, entries []domain.QueueEntry, label func(string) string) discordgo.ActionsRow {
	opts := make([]discordgo.SelectMenuOption, 0, len(entries))
	for i, e := range entries {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       truncate(fmt.Sprintf("%02d) %s", i+1, label(e.UserID)), 100),
			Value:       "uid:" + e.UserID,
			Description: truncate(e.UserID, 100),
		})
	}
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    customID(componentKickSelect, queueID),
				Placeholder: "Selecciona a quién sacar",
				Options:     opts,
			},
		},
	}
}

//--> solo admins
func (r *Router) onKickSelect(ctx context.Context, c *Ctx) (string, error) {
	if !r.requireAdmin(c.Session, c.Event) {
		return "", nil
	}
	values := c.Event.MessageComponentData().Values
	if len(values) == 0 {
		return "⚠️ Selección inválida.", nil
	}
	uid := strings.TrimPrefix(values[0], "uid:")
	if _, err := r.eng.Queues.LeaveQueue(ctx, c.GuildID, uid); err != nil {
		return "", err
	}
	r.RefreshPanel(c.GuildID, c.Arg)
	return "✅ " + mentionOf(uid) + " salió de la cola.", nil
}
