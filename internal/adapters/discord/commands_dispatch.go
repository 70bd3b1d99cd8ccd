// lógica de InteractionApplicationCommand: parsea opciones y despacha al engine
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

func (r *Router) commandTable() []Command {
	return []Command{
		{Key: "queue/create", AdminOnly: true, Handler: r.cmdQueueCreate},
		{Key: "queue/delete", AdminOnly: true, Handler: r.cmdQueueDelete},
		{Key: "queue/lock", AdminOnly: true, Handler: r.cmdQueueLock},
		{Key: "queue/unlock", AdminOnly: true, Handler: r.cmdQueueUnlock},
		{Key: "queue/list", Handler: r.cmdQueueList},
		{Key: "queue/show", Handler: r.cmdQueueShow},
		{Key: "queue/leave", Handler: r.cmdQueueLeave},
		{Key: "queue/kick", AdminOnly: true, Handler: r.cmdQueueKick},
		{Key: "queue/timeout", AdminOnly: true, Handler: r.cmdQueueTimeout},
		{Key: "queue/message", AdminOnly: true, Handler: r.cmdQueueMessage},
		{Key: "queue/info-add", AdminOnly: true, Handler: r.cmdQueueInfoAdd},
		{Key: "queue/info-remove", AdminOnly: true, Handler: r.cmdQueueInfoRemove},
		{Key: "queue/panel", AdminOnly: true, Handler: r.cmdQueuePanel},

		{Key: "session/start", Handler: r.cmdSessionStart},
		{Key: "session/end", Handler: r.cmdSessionEnd},
		{Key: "session/status", Handler: r.cmdSessionStatus},

		{Key: "pick", Handler: r.cmdPick},

		{Key: "room/lock", Handler: r.roomCmd(r.eng.Rooms.LockRoom, "🔒 Sala cerrada.")},
		{Key: "room/unlock", Handler: r.roomCmd(r.eng.Rooms.UnlockRoom, "🔓 Sala abierta.")},
		{Key: "room/hide", Handler: r.roomCmd(r.eng.Rooms.HideRoom, "🙈 Sala oculta.")},
		{Key: "room/show", Handler: r.roomCmd(r.eng.Rooms.ShowRoom, "👀 Sala visible.")},
		{Key: "room/permit", Handler: r.cmdRoomPermit},
		{Key: "room/revoke", Handler: r.cmdRoomRevoke},
		{Key: "room/kick", Handler: r.cmdRoomKick},
		{Key: "room/kick-all", Handler: r.cmdRoomKickAll},
		{Key: "room/transfer", Handler: r.cmdRoomTransfer},
	}
}

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	key := commandKey(ic)
	log := r.log.With("cmd", key, "user", ic.Member.User.ID, "guild", ic.GuildID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in command", "panic", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado procesando el comando. Contacta con un administrador.")
		}
	}()

	_ = DeferEphemeral(s, ic)

	cmd, ok := r.commands[key]
	if !ok {
		ReplyEphemeral(s, ic, "⚠️ Comando desconocido.")
		return
	}
	if cmd.AdminOnly && !r.requireAdmin(s, ic) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandMax)
	defer cancel()
	defer step(log, key)()

	msg, err := cmd.Handler(ctx, r.newCtx(s, ic, log))
	r.reply(s, ic, log, msg, err)
}

func logHandlerError(log *slog.Logger, err error) {
	if domain.IsDomain(err) {
		log.Info("rejected", "err", err)
		return
	}
	log.Error("failed", "err", err)
}

// ---------- /queue ----------

func (r *Router) queueArg(ctx context.Context, c *Ctx) (*domain.Queue, error) {
	name, _ := optStr(c.Event, "queue")
	return r.eng.Queues.GetQueue(ctx, c.GuildID, name)
}

func (r *Router) cmdQueueCreate(ctx context.Context, c *Ctx) (string, error) {
	in := queueCreateInput(c.Event, r.defaultTimeout)
	q, err := r.eng.Queues.CreateQueue(ctx, c.GuildID, in)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Cola **%s** creada. Entrada: <#%s>.", q.Name, in.ChannelID), nil
}

// queueCreateInput arma la cola pedida. exempt_roles y supervisor_roles son
// independientes: unos no entran a la cola, los otros administran las salas.
func queueCreateInput(ic *discordgo.InteractionCreate, defaultTimeout int64) service.NewQueue {
	in := service.NewQueue{DisconnectTimeout: defaultTimeout}
	in.Name, _ = optStr(ic, "name")
	in.ChannelID, _ = optChannel(ic, "channel")
	in.Description, _ = optStr(ic, "description")
	if v, ok := optInt(ic, "timeout_ms"); ok {
		in.DisconnectTimeout = int64(v)
	}
	if raw, ok := optStr(ic, "exempt_roles"); ok {
		in.ExemptRoles = parseIDs(raw)
	}
	if raw, ok := optStr(ic, "supervisor_roles"); ok {
		in.Supervisors = parseIDs(raw)
	}
	return in
}

func (r *Router) cmdQueueDelete(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	if err := r.eng.Queues.DeleteQueue(ctx, c.GuildID, q.ID); err != nil {
		return "", err
	}
	if err := r.panels.Delete(ctx, c.GuildID, q.ID); err != nil {
		c.Log.Warn("panel delete failed", "queue", q.ID, "err", err)
	}
	return fmt.Sprintf("🗑️ Cola **%s** borrada.", q.Name), nil
}

func (r *Router) cmdQueueLock(ctx context.Context, c *Ctx) (string, error) {
	return r.setQueueLocked(ctx, c, true)
}

func (r *Router) cmdQueueUnlock(ctx context.Context, c *Ctx) (string, error) {
	return r.setQueueLocked(ctx, c, false)
}

func (r *Router) setQueueLocked(ctx context.Context, c *Ctx, locked bool) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	if q, err = r.eng.Queues.SetLocked(ctx, c.GuildID, q.ID, locked); err != nil {
		return "", err
	}
	r.RefreshPanel(c.GuildID, q.ID)
	if locked {
		return fmt.Sprintf("🔒 **%s** cerrada.", q.Name), nil
	}
	return fmt.Sprintf("🔓 **%s** abierta.", q.Name), nil
}

func (r *Router) cmdQueueList(ctx context.Context, c *Ctx) (string, error) {
	qs, err := r.eng.Queues.ListQueues(ctx, c.GuildID)
	if err != nil {
		return "", err
	}
	return formatQueueList(qs), nil
}

func formatQueueList(qs []*domain.Queue) string {
	if len(qs) == 0 {
		return "ℹ️ No hay colas configuradas."
	}
	var b strings.Builder
	for _, q := range qs {
		fmt.Fprintf(&b, "• **%s** — %d en espera", q.Name, len(q.Entries))
		if q.Locked {
			b.WriteString(" · 🔒")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Router) cmdQueueShow(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	entries := r.eng.Queues.GetSortedEntries(q, panelMaxRows)
	return fmt.Sprintf("**%s**\n%s", q.Name, formatEntries(q.ID, entries, r.eng.Queues.IsPendingRemoval)), nil
}

func (r *Router) cmdQueueLeave(ctx context.Context, c *Ctx) (string, error) {
	msg, err := r.eng.Queues.LeaveQueue(ctx, c.GuildID, c.UserID)
	if err != nil {
		return "", err
	}
	r.refreshGuildPanels(c.GuildID)
	return msg, nil
}

func (r *Router) cmdQueueKick(ctx context.Context, c *Ctx) (string, error) {
	target, _ := optUser(c.Event, "user")
	if _, err := r.eng.Queues.LeaveQueue(ctx, c.GuildID, target); err != nil {
		return "", err
	}
	r.refreshGuildPanels(c.GuildID)
	return "✅ " + mentionOf(target) + " salió de la cola.", nil
}

func (r *Router) cmdQueueTimeout(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	ms, _ := optInt(c.Event, "ms")
	v := int64(ms)
	if _, err := r.eng.Queues.UpdateSettings(ctx, c.GuildID, q.ID, service.QueueSettingsPatch{DisconnectTimeout: &v}); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ **%s**: ventana de reconexión %d ms.", q.Name, v), nil
}

func (r *Router) cmdQueueMessage(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	rawEv, _ := optStr(c.Event, "event")
	tpl, _ := optStr(c.Event, "template")
	ev, err := domain.ParseQueueEvent(rawEv)
	if err != nil {
		return "", err
	}
	msgs := q.Messages
	if err := setMessage(&msgs, ev, tpl); err != nil {
		return "", err
	}
	if _, err := r.eng.Queues.UpdateSettings(ctx, c.GuildID, q.ID, service.QueueSettingsPatch{Messages: &msgs}); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ **%s**: mensaje `%s` actualizado.", q.Name, ev), nil
}

// setMessage cambia la plantilla de un evento; vacío vuelve al default.
func setMessage(m *domain.QueueMessages, ev domain.QueueEvent, tpl string) error {
	switch ev {
	case domain.EventJoin:
		m.Join = tpl
	case domain.EventStay:
		m.Stay = tpl
	case domain.EventLeave:
		m.Leave = tpl
	case domain.EventConfirmLeave:
		m.ConfirmLeave = tpl
	case domain.EventLocked:
		m.Locked = tpl
	case domain.EventMatch:
		m.Match = tpl
	default:
		return &domain.Error{Kind: domain.KindInvalidEvent, Subject: string(ev), Reason: "event has no message"}
	}
	return nil
}

func (r *Router) cmdQueueInfoAdd(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	ch, _ := optChannel(c.Event, "channel")
	raw, _ := optStr(c.Event, "events")
	if err := r.eng.Queues.AddQueueInfoChannel(ctx, c.GuildID, q.ID, ch, splitList(raw)); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ <#%s> recibirá eventos de **%s**.", ch, q.Name), nil
}

func (r *Router) cmdQueueInfoRemove(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	ch, _ := optChannel(c.Event, "channel")
	if err := r.eng.Queues.RemoveQueueInfoChannel(ctx, c.GuildID, q.ID, ch); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ <#%s> ya no recibe eventos de **%s**.", ch, q.Name), nil
}

func (r *Router) cmdQueuePanel(ctx context.Context, c *Ctx) (string, error) {
	q, err := r.queueArg(ctx, c)
	if err != nil {
		return "", err
	}
	if err := r.publishPanel(ctx, c.GuildID, c.Event.ChannelID, q); err != nil {
		return "", err
	}
	return "✅ Panel publicado aquí.", nil
}

// ---------- /session ----------

func (r *Router) cmdSessionStart(ctx context.Context, c *Ctx) (string, error) {
	var q *domain.Queue
	if name, ok := optStr(c.Event, "queue"); ok && name != "" {
		var err error
		if q, err = r.eng.Queues.GetQueue(ctx, c.GuildID, name); err != nil {
			return "", err
		}
		if !c.Member.Admin && len(q.ExemptRoles) > 0 && !c.Member.HasAnyRole(q.ExemptRoles) {
			return "", domain.Unauthorized("only tutors of this queue can start a session on it")
		}
	}
	if _, err := r.eng.Queues.StartTutorSession(ctx, c.GuildID, q, c.UserID); err != nil {
		return "", err
	}
	if q == nil {
		return "✅ Sesión iniciada.", nil
	}
	return fmt.Sprintf("✅ Sesión iniciada en **%s**. Usa `/pick` para atender.", q.Name), nil
}

func (r *Router) cmdSessionEnd(ctx context.Context, c *Ctx) (string, error) {
	s, err := r.eng.Queues.ActiveSession(ctx, c.GuildID, c.UserID)
	if err != nil {
		return "", err
	}
	if s, err = r.eng.Queues.EndTutorSession(ctx, c.GuildID, s, c.UserID); err != nil {
		return "", err
	}
	return fmt.Sprintf("👋 Sesión terminada: %s, %d sala(s).", domain.FormatDuration(s.Duration(r.clock.Now())), len(s.Rooms)), nil
}

func (r *Router) cmdSessionStatus(ctx context.Context, c *Ctx) (string, error) {
	s, err := r.eng.Queues.ActiveSession(ctx, c.GuildID, c.UserID)
	if err != nil {
		return "", err
	}
	where := "sin cola"
	if s.QueueID != "" {
		if q, err := r.eng.Queues.GetQueueByID(ctx, c.GuildID, s.QueueID); err == nil {
			where = fmt.Sprintf("**%s** (%d en espera)", q.Name, len(q.Entries))
		}
	}
	return fmt.Sprintf("🟢 Sesión activa desde <t:%d:R> · %s · %d sala(s).", s.Start.Unix(), where, len(s.Rooms)), nil
}

// ---------- /pick ----------

func (r *Router) cmdPick(ctx context.Context, c *Ctx) (string, error) {
	count := 1
	if v, ok := optInt(c.Event, "count"); ok {
		count = v
	}
	var present []string
	if s, err := r.eng.Queues.ActiveSession(ctx, c.GuildID, c.UserID); err == nil && s.QueueID != "" {
		present = r.presentMembers(ctx, c.GuildID, s.QueueID)
	}

	res, err := r.eng.Pairing.Pick(ctx, c.GuildID, c.Member, count, present)
	if res != nil && res.Queue != nil {
		r.RefreshPanel(c.GuildID, res.Queue.ID)
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Sala <#%s> lista con ", res.Room.ChannelID)
	for i, st := range res.Students {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(st.Mention())
	}
	b.WriteString(".")
	if len(res.Moved) < len(res.Students)+1 {
		b.WriteString("\nℹ️ No pude mover a todos; los que falten tienen acceso a la sala.")
	}
	if len(res.Dropped) > 0 {
		fmt.Fprintf(&b, "\n🧹 %d entrada(s) de gente que ya no está en el servidor fueron quitadas.", len(res.Dropped))
	}
	return b.String(), nil
}

// presentMembers devuelve los ids de la cola que siguen en el guild. Si la
// consulta falla por otra razón se asume presente.
func (r *Router) presentMembers(ctx context.Context, guildID, queueID string) []string {
	q, err := r.eng.Queues.GetQueueByID(ctx, guildID, queueID)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(q.Entries))
	for _, e := range q.Entries {
		_, err := r.gw.Member(ctx, guildID, e.UserID)
		if errors.Is(err, domain.ErrUserNotInGuild) {
			continue
		}
		out = append(out, e.UserID)
	}
	return out
}

// ---------- /room ----------

// ownedRoom resuelve la sala temporal del que invoca y valida permisos.
func (r *Router) ownedRoom(ctx context.Context, c *Ctx) (*domain.VoiceChannel, error) {
	rec, err := r.eng.Rooms.GetTemporaryVoiceChannel(ctx, c.GuildID, c.UserID)
	if err != nil {
		return nil, err
	}
	if err := r.eng.Rooms.Authorize(rec, c.Member); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Router) roomCmd(fn func(ctx context.Context, guildID, roomID, initiator string) error, ok string) CommandHandler {
	return func(ctx context.Context, c *Ctx) (string, error) {
		rec, err := r.ownedRoom(ctx, c)
		if err != nil {
			return "", err
		}
		if err := fn(ctx, c.GuildID, rec.ChannelID, c.UserID); err != nil {
			return "", err
		}
		return ok, nil
	}
}

func (r *Router) cmdRoomPermit(ctx context.Context, c *Ctx) (string, error) {
	rec, err := r.ownedRoom(ctx, c)
	if err != nil {
		return "", err
	}
	target, _ := optUser(c.Event, "user")
	if err := r.eng.Rooms.PermitMemberToJoinRoom(ctx, c.GuildID, rec.ChannelID, target, c.UserID); err != nil {
		return "", err
	}
	return "✅ " + mentionOf(target) + " puede entrar a la sala.", nil
}

func (r *Router) cmdRoomRevoke(ctx context.Context, c *Ctx) (string, error) {
	rec, err := r.ownedRoom(ctx, c)
	if err != nil {
		return "", err
	}
	target, _ := optUser(c.Event, "user")
	if err := r.eng.Rooms.RevokeMemberAccess(ctx, c.GuildID, rec.ChannelID, target, c.UserID); err != nil {
		return "", err
	}
	return "✅ " + mentionOf(target) + " ya no tiene acceso.", nil
}

func (r *Router) cmdRoomKick(ctx context.Context, c *Ctx) (string, error) {
	rec, err := r.ownedRoom(ctx, c)
	if err != nil {
		return "", err
	}
	target, _ := optUser(c.Event, "user")
	if err := r.eng.Rooms.KickAndRevoke(ctx, c.GuildID, target, rec.ChannelID, c.UserID); err != nil {
		return "", err
	}
	return "👢 " + mentionOf(target) + " fuera de la sala y sin acceso.", nil
}

func (r *Router) cmdRoomKickAll(ctx context.Context, c *Ctx) (string, error) {
	rec, err := r.ownedRoom(ctx, c)
	if err != nil {
		return "", err
	}
	kicked, err := r.eng.Rooms.KickMembersFromRoom(ctx, c.GuildID, rec.ChannelID, c.UserID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("👢 %d fuera de la sala.", len(kicked)), nil
}

func (r *Router) cmdRoomTransfer(ctx context.Context, c *Ctx) (string, error) {
	rec, err := r.ownedRoom(ctx, c)
	if err != nil {
		return "", err
	}
	target, _ := optUser(c.Event, "user")
	if err := r.eng.Rooms.TransferRoomOwnership(ctx, c.GuildID, target, rec.ChannelID, rec.Owner); err != nil {
		return "", err
	}
	return "✅ La sala ahora es de " + mentionOf(target) + ".", nil
}

var _ PanelStore = (*storage.PanelRepo)(nil)
