package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
)

// transitionTimeout acota el trabajo de una transición despachada por Submit.
const transitionTimeout = 15 * time.Second

// Transition es un cambio de presencia de voz. Canal vacío = sin canal.
type Transition struct {
	GuildID      string
	UserID       string
	OldChannelID string
	NewChannelID string
}

// PresenceRouter es el único punto de entrada de las transiciones de voz:
// clasifica y despacha a QueueManager y al log de salas. Nunca devuelve
// error; todo se loguea y, si aplica, se notifica al usuario.
type PresenceRouter struct {
	queues *QueueManager
	guilds GuildRepo
	rooms  RoomRepo
	gw     Gateway
	notify Notifier
	clock  clock.Clock
	log    *slog.Logger

	// inbox: transiciones por guild en orden de llegada. Que exista la
	// clave significa que hay un worker drenando ese guild.
	inboxMu  sync.Mutex
	inbox    map[string][]Transition
	inflight sync.WaitGroup
}

func NewPresenceRouter(queues *QueueManager, guilds GuildRepo, rooms RoomRepo, gw Gateway, notify Notifier, opts ...Option) *PresenceRouter {
	o := buildOptions(opts)
	return &PresenceRouter{
		queues: queues,
		guilds: guilds,
		rooms:  rooms,
		gw:     gw,
		notify: notify,
		clock:  o.clock,
		log:    o.logger.With("component", "presence"),
		inbox:  map[string][]Transition{},
	}
}

// Submit encola la transición en la fila de su guild y vuelve enseguida.
// Un único worker por guild las procesa de a una, en el orden de Submit.
func (r *PresenceRouter) Submit(t Transition) {
	r.inflight.Add(1)
	r.inboxMu.Lock()
	defer r.inboxMu.Unlock()
	q, running := r.inbox[t.GuildID]
	r.inbox[t.GuildID] = append(q, t)
	if !running {
		go r.drain(t.GuildID)
	}
}

// Drain espera a que se procesen todas las transiciones encoladas.
func (r *PresenceRouter) Drain() {
	r.inflight.Wait()
}

func (r *PresenceRouter) drain(guildID string) {
	for {
		r.inboxMu.Lock()
		q := r.inbox[guildID]
		if len(q) == 0 {
			delete(r.inbox, guildID)
			r.inboxMu.Unlock()
			return
		}
		t := q[0]
		r.inbox[guildID] = q[1:]
		r.inboxMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
		r.Handle(ctx, t)
		cancel()
		r.inflight.Done()
	}
}

// Handle procesa una transición. Mute/deafen (mismo canal) no hace nada.
// Con cambio de canal corre primero la salida del viejo y después la
// entrada al nuevo.
func (r *PresenceRouter) Handle(ctx context.Context, t Transition) {
	if t.OldChannelID == t.NewChannelID {
		return
	}
	unlock := r.queues.lockGuild(t.GuildID)
	defer unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("presence panic", "guild", t.GuildID, "user", t.UserID, "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	if t.OldChannelID != "" {
		if err := r.leavePath(ctx, t); err != nil {
			r.fail(ctx, t, err)
		}
	}
	if t.NewChannelID != "" {
		if err := r.joinPath(ctx, t); err != nil {
			r.fail(ctx, t, err)
		}
	}
}

func (r *PresenceRouter) leavePath(ctx context.Context, t Transition) error {
	g, err := r.guilds.Load(ctx, t.GuildID)
	if err != nil {
		return fmt.Errorf("load guild: %w", err)
	}
	rec := g.VoiceChannel(t.OldChannelID)

	if rec != nil && rec.Temporary {
		occupants, err := r.gw.Occupants(ctx, t.GuildID, t.OldChannelID)
		if err != nil {
			return err
		}
		if len(occupants) == 0 {
			return r.closeRoom(ctx, t)
		}
	}

	if rec != nil && rec.IsQueueChannel() {
		if q := g.QueueByID(rec.QueueID); q != nil && q.HasEntry(t.UserID) {
			if err := r.queueLeave(ctx, t, q); err != nil {
				return err
			}
		}
	}

	_, err = appendRoomEvents(ctx, r.rooms, t.GuildID, t.OldChannelID, r.clock.Now(), false, func(room *domain.Room) {
		room.Append(domain.RoomEvent{Emitter: t.UserID, Kind: domain.RoomUserLeave, At: r.clock.Now().UTC()})
	})
	return err
}

// closeRoom borra el canal temporal vacío. El registro del guild queda
// huérfano e inerte; sólo se cierra el log de auditoría.
func (r *PresenceRouter) closeRoom(ctx context.Context, t Transition) error {
	if err := r.gw.DeleteChannel(ctx, t.OldChannelID); err != nil {
		return fmt.Errorf("delete room %s: %w", t.OldChannelID, err)
	}
	r.log.Info("room closed", "guild", t.GuildID, "room", t.OldChannelID, "last", t.UserID)

	now := r.clock.Now().UTC()
	_, err := appendRoomEvents(ctx, r.rooms, t.GuildID, t.OldChannelID, now, false, func(room *domain.Room) {
		room.Append(domain.RoomEvent{Emitter: t.UserID, Kind: domain.RoomUserLeave, At: now})
		room.Append(domain.RoomEvent{Emitter: t.UserID, Kind: domain.RoomDeleted, At: now})
		room.Active = false
	})
	return err
}

func (r *PresenceRouter) queueLeave(ctx context.Context, t Transition, q *domain.Queue) error {
	if q.DisconnectTimeout <= 0 {
		msg, err := r.queues.LeaveQueue(ctx, t.GuildID, t.UserID)
		if err != nil {
			return err
		}
		q.RemoveEntry(t.UserID)
		r.send(ctx, t, domain.EventLeave, q, msg)
		return nil
	}
	msg, err := r.queues.LeaveQueueWithTimeout(ctx, t.GuildID, q, t.UserID)
	if err != nil {
		return err
	}
	r.send(ctx, t, domain.EventConfirmLeave, q, msg)
	return nil
}

func (r *PresenceRouter) joinPath(ctx context.Context, t Transition) error {
	g, err := r.guilds.Load(ctx, t.GuildID)
	if err != nil {
		return fmt.Errorf("load guild: %w", err)
	}
	rec := g.VoiceChannel(t.NewChannelID)

	if rec != nil && rec.IsQueueChannel() {
		q := g.QueueByID(rec.QueueID)
		if q == nil {
			r.log.Warn("queue channel without queue", "guild", t.GuildID, "channel", rec.ChannelID, "queue", rec.QueueID)
			return nil
		}
		return r.queueJoin(ctx, t, q.Clone())
	}

	// un canal registrado se audita siempre; uno sin registro sólo si ya
	// tiene log
	_, err = appendRoomEvents(ctx, r.rooms, t.GuildID, t.NewChannelID, r.clock.Now(), rec != nil, func(room *domain.Room) {
		room.Append(domain.RoomEvent{Emitter: t.UserID, Kind: domain.RoomUserJoin, At: r.clock.Now().UTC()})
	})
	return err
}

func (r *PresenceRouter) queueJoin(ctx context.Context, t Transition, q *domain.Queue) error {
	if q.HasEntry(t.UserID) {
		r.queues.StayInQueue(q, t.UserID)
		msg := domain.Interpolate(q.Messages.WithDefaults().Stay, map[string]string{"name": q.Name})
		r.send(ctx, t, domain.EventStay, q, msg)
		return nil
	}

	if len(q.ExemptRoles) > 0 {
		member, err := r.gw.Member(ctx, t.GuildID, t.UserID)
		if err != nil {
			return err
		}
		if member.HasAnyRole(q.ExemptRoles) {
			r.log.Debug("exempt member in queue channel", "guild", t.GuildID, "queue", q.ID, "user", t.UserID)
			return nil
		}
	}

	if q.Locked {
		if err := r.gw.MoveMember(ctx, t.GuildID, t.UserID, nil); err != nil {
			r.log.Warn("locked queue: disconnect failed", "guild", t.GuildID, "user", t.UserID, "err", err)
		}
		msg := domain.Interpolate(q.Messages.WithDefaults().Locked, map[string]string{"name": q.Name})
		r.send(ctx, t, domain.EventLocked, q, msg)
		return nil
	}

	msg, err := r.queues.JoinQueue(ctx, t.GuildID, q.ID, t.UserID)
	if err != nil {
		return err
	}
	if snap, err := r.queues.GetQueueByID(ctx, t.GuildID, q.ID); err == nil {
		q = snap
	}
	r.send(ctx, t, domain.EventJoin, q, msg)
	return nil
}

func (r *PresenceRouter) send(ctx context.Context, t Transition, ev domain.QueueEvent, q *domain.Queue, content string) {
	err := r.notify.Notify(ctx, Notification{GuildID: t.GuildID, UserID: t.UserID, Event: ev, Queue: q, Content: content})
	if err != nil {
		r.log.Warn("notify failed", "guild", t.GuildID, "user", t.UserID, "event", ev, "err", err)
	}
}

// fail loguea y avisa al usuario; nunca sale del handler.
func (r *PresenceRouter) fail(ctx context.Context, t Transition, err error) {
	if domain.IsDomain(err) {
		r.log.Info("presence transition rejected", "guild", t.GuildID, "user", t.UserID, "err", err)
	} else {
		r.log.Error("presence transition failed", "guild", t.GuildID, "user", t.UserID, "old", t.OldChannelID, "new", t.NewChannelID, "err", err)
	}
	nerr := r.notify.Notify(ctx, Notification{GuildID: t.GuildID, UserID: t.UserID, Event: domain.EventError, Err: err})
	if nerr != nil {
		r.log.Warn("error notify failed", "guild", t.GuildID, "user", t.UserID, "err", nerr)
	}
}
