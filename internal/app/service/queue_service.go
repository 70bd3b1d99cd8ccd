package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

// firedRemovalTimeout acota el trabajo de un retiro diferido que disparó.
const firedRemovalTimeout = 10 * time.Second

// QueueManager maneja todas las transiciones de membresía de las colas.
type QueueManager struct {
	guilds   GuildRepo
	sessions SessionRepo
	notify   Notifier
	clock    clock.Clock
	log      *slog.Logger
	newID    func() string
	pending  *pendingRemovals

	// guildMu serializa por guild las transiciones de presencia y los
	// retiros diferidos que disparan.
	guildMu keyedMutex
}

func (m *QueueManager) lockGuild(guildID string) func() { return m.guildMu.lock(guildID) }

func NewQueueManager(guilds GuildRepo, sessions SessionRepo, notify Notifier, opts ...Option) *QueueManager {
	o := buildOptions(opts)
	newID := o.newID
	if newID == nil {
		newID = uuid.NewString
	}
	return &QueueManager{
		guilds:   guilds,
		sessions: sessions,
		notify:   notify,
		clock:    o.clock,
		log:      o.logger.With("component", "queue"),
		newID:    newID,
		pending:  newPendingRemovals(),
	}
}

// JoinQueue agrega al usuario al final de la cola y devuelve el mensaje de
// bienvenida. Falla si ya está en esta u otra cola del guild, o si la cola
// está cerrada.
func (m *QueueManager) JoinQueue(ctx context.Context, guildID, queueID, userID string) (string, error) {
	var msg string
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		if other := g.QueueOf(userID); other != nil {
			return domain.NewError(domain.KindAlreadyInQueue, other.Name)
		}
		if q.Locked {
			return domain.NewError(domain.KindQueueLocked, q.Name)
		}

		now := m.clock.Now()
		q.Entries = append(q.Entries, domain.NewQueueEntry(userID, now))
		msg = domain.Interpolate(q.Messages.WithDefaults().Join, map[string]string{
			"name":       q.Name,
			"position":   strconv.Itoa(len(q.Entries)),
			"total":      strconv.Itoa(len(q.Entries)),
			"since_open": domain.FormatDuration(now.Sub(q.OpenedAt)),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	m.log.Info("queue join", "guild", guildID, "queue", queueID, "user", userID)
	return msg, nil
}

// LeaveQueue saca al usuario de la cola donde esté, en el acto.
func (m *QueueManager) LeaveQueue(ctx context.Context, guildID, userID string) (string, error) {
	msg, _, err := m.leave(ctx, guildID, "", userID)
	return msg, err
}

// leave quita la entrada; queueID vacío = cualquier cola. Devuelve el
// snapshot de la cola ya sin la entrada.
func (m *QueueManager) leave(ctx context.Context, guildID, queueID, userID string) (string, *domain.Queue, error) {
	var (
		msg  string
		snap *domain.Queue
	)
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueOf(userID)
		if q == nil || (queueID != "" && q.ID != queueID) {
			return domain.NewError(domain.KindNotInQueue, userID)
		}
		entry, _ := q.RemoveEntry(userID)
		msg = domain.Interpolate(q.Messages.WithDefaults().Leave, map[string]string{
			"name":       q.Name,
			"time_spent": domain.FormatDuration(m.clock.Now().Sub(entry.JoinedAt)),
		})
		snap = q.Clone()
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	m.pending.clear(pendingKey{queueID: snap.ID, userID: userID})
	m.log.Info("queue leave", "guild", guildID, "queue", snap.ID, "user", userID)
	return msg, snap, nil
}

// LeaveQueueWithTimeout no saca al usuario: arma un retiro diferido de
// queue.DisconnectTimeout y devuelve el mensaje de "volvé o perdés el
// lugar". Si el usuario vuelve antes (StayInQueue) el retiro no ocurre.
func (m *QueueManager) LeaveQueueWithTimeout(ctx context.Context, guildID string, q *domain.Queue, userID string) (string, error) {
	if !q.HasEntry(userID) {
		return "", domain.NewError(domain.KindNotInQueue, userID)
	}
	if q.DisconnectTimeout <= 0 {
		return m.LeaveQueue(ctx, guildID, userID)
	}

	key := pendingKey{queueID: q.ID, userID: userID}
	m.pending.arm(key, m.clock, q.Timeout(), func(pr *pendingRemoval) {
		m.firePendingRemoval(guildID, q.ID, userID, pr)
	})
	m.log.Info("queue leave armed", "guild", guildID, "queue", q.ID, "user", userID, "timeout", q.Timeout())

	return domain.Interpolate(q.Messages.WithDefaults().ConfirmLeave, map[string]string{
		"name":    q.Name,
		"timeout": domain.FormatDuration(q.Timeout()),
	}), nil
}

// firePendingRemoval corre con el lock del guild tomado, igual que una
// transición de presencia, así un reconnect no queda a mitad del retiro.
func (m *QueueManager) firePendingRemoval(guildID, queueID, userID string, pr *pendingRemoval) {
	unlock := m.lockGuild(guildID)
	defer unlock()
	if !m.pending.take(pendingKey{queueID: queueID, userID: userID}, pr) {
		m.log.Debug("pending removal: superseded", "guild", guildID, "queue", queueID, "user", userID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), firedRemovalTimeout)
	defer cancel()

	msg, snap, err := m.leave(ctx, guildID, queueID, userID)
	if errors.Is(err, domain.ErrNotInQueue) {
		m.log.Debug("pending removal: user already gone", "guild", guildID, "queue", queueID, "user", userID)
		return
	}
	if err != nil {
		m.log.Error("pending removal failed", "guild", guildID, "queue", queueID, "user", userID, "err", err)
		return
	}
	if err := m.notify.Notify(ctx, Notification{
		GuildID: guildID,
		UserID:  userID,
		Event:   domain.EventLeave,
		Queue:   snap,
		Content: msg,
	}); err != nil {
		m.log.Warn("pending removal: notify failed", "user", userID, "err", err)
	}
}

// StayInQueue desarma el retiro pendiente de (cola, usuario). Sin retiro
// armado no hace nada. Devuelve si había uno.
func (m *QueueManager) StayInQueue(q *domain.Queue, userID string) bool {
	cleared := m.pending.clear(pendingKey{queueID: q.ID, userID: userID})
	if cleared {
		m.log.Info("queue stay", "queue", q.ID, "user", userID)
	}
	return cleared
}

// IsPendingRemoval reporta si hay un retiro diferido armado.
func (m *QueueManager) IsPendingRemoval(queueID, userID string) bool {
	_, ok := m.pending.armed(pendingKey{queueID: queueID, userID: userID})
	return ok
}

// GetQueue busca por nombre sin distinguir mayúsculas.
func (m *QueueManager) GetQueue(ctx context.Context, guildID, name string) (*domain.Queue, error) {
	g, err := m.guilds.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	q := g.QueueByName(name)
	if q == nil {
		return nil, domain.NewError(domain.KindCouldNotFindQueue, name)
	}
	return q.Clone(), nil
}

func (m *QueueManager) GetQueueByID(ctx context.Context, guildID, queueID string) (*domain.Queue, error) {
	g, err := m.guilds.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	q := g.QueueByID(queueID)
	if q == nil {
		return nil, domain.NewError(domain.KindCouldNotFindQueue, queueID)
	}
	return q.Clone(), nil
}

// ListQueues devuelve snapshots de todas las colas del guild.
func (m *QueueManager) ListQueues(ctx context.Context, guildID string) ([]*domain.Queue, error) {
	g, err := m.guilds.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Queue, 0, len(g.Queues))
	for _, q := range g.Queues {
		out = append(out, q.Clone())
	}
	return out, nil
}

// GetSortedEntries devuelve hasta limit entradas por orden de llegada.
func (m *QueueManager) GetSortedEntries(q *domain.Queue, limit int) []domain.QueueEntry {
	return q.SortedEntries(limit)
}

// KickNonServerMembers saca, sin notificar, las entradas de usuarios que ya
// no están en el guild. Devuelve los ids removidos.
func (m *QueueManager) KickNonServerMembers(ctx context.Context, guildID string, currentMembers []string, queueID string) ([]string, error) {
	present := make(map[string]struct{}, len(currentMembers))
	for _, id := range currentMembers {
		present[id] = struct{}{}
	}

	var removed []string
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		removed = removed[:0]
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		kept := q.Entries[:0]
		for _, e := range q.Entries {
			if _, ok := present[e.UserID]; ok {
				kept = append(kept, e)
				continue
			}
			removed = append(removed, e.UserID)
		}
		q.Entries = kept
		if len(removed) == 0 {
			return errSkipSave
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		m.pending.clear(pendingKey{queueID: queueID, userID: id})
	}
	if len(removed) > 0 {
		m.log.Info("queue: removed non-members", "guild", guildID, "queue", queueID, "count", len(removed))
	}
	return removed, nil
}

// TakeNext saca atómicamente las primeras count entradas (por llegada).
// Falla con QueueIsEmpty si no hay nadie.
func (m *QueueManager) TakeNext(ctx context.Context, guildID, queueID string, count int) ([]domain.QueueEntry, *domain.Queue, error) {
	var (
		taken []domain.QueueEntry
		snap  *domain.Queue
	)
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		taken = m.GetSortedEntries(q, count)
		if len(taken) == 0 {
			return domain.NewError(domain.KindQueueIsEmpty, q.Name)
		}
		for _, e := range taken {
			q.RemoveEntry(e.UserID)
		}
		snap = q.Clone()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	for _, e := range taken {
		m.pending.clear(pendingKey{queueID: queueID, userID: e.UserID})
	}
	return taken, snap, nil
}

// restoreEntries devuelve entradas tomadas con TakeNext a su lugar
// original (por timestamp), salvo las de usuarios que ya volvieron a
// alguna cola.
func (m *QueueManager) restoreEntries(ctx context.Context, guildID, queueID string, entries []domain.QueueEntry) error {
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return errSkipSave
		}
		for _, e := range entries {
			if g.QueueOf(e.UserID) != nil {
				continue
			}
			q.Entries = append(q.Entries, e)
		}
		sort.SliceStable(q.Entries, func(i, j int) bool { return q.Entries[i].JoinedAt.Before(q.Entries[j].JoinedAt) })
		return nil
	})
	return err
}

// StartTutorSession abre la sesión del tutor, atada a la cola si q != nil.
func (m *QueueManager) StartTutorSession(ctx context.Context, guildID string, q *domain.Queue, userID string) (*domain.Session, error) {
	if _, err := m.sessions.FindActive(ctx, guildID, userID); err == nil {
		return nil, domain.NewError(domain.KindUserHasActiveSession, userID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	s := &domain.Session{
		ID:      m.newID(),
		UserID:  userID,
		GuildID: guildID,
		Role:    domain.RoleCoach,
		Active:  true,
		Start:   m.clock.Now().UTC(),
	}
	if q != nil {
		s.QueueID = q.ID
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		// otra sesión activa se creó entre FindActive y Create
		if errors.Is(err, storage.ErrConflict) {
			return nil, domain.NewError(domain.KindUserHasActiveSession, userID)
		}
		return nil, err
	}
	m.log.Info("session start", "guild", guildID, "user", userID, "session", s.ID, "queue", s.QueueID)
	return s, nil
}

// ActiveSession devuelve la sesión activa o UserHasNoActiveSession.
func (m *QueueManager) ActiveSession(ctx context.Context, guildID, userID string) (*domain.Session, error) {
	s, err := m.sessions.FindActive(ctx, guildID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NewError(domain.KindUserHasNoActiveSession, userID)
	}
	return s, err
}

// EndTutorSession cierra la sesión con end_certain = true. Si s es nil se
// busca la sesión activa del usuario.
func (m *QueueManager) EndTutorSession(ctx context.Context, guildID string, s *domain.Session, userID string) (*domain.Session, error) {
	if s == nil {
		var err error
		if s, err = m.ActiveSession(ctx, guildID, userID); err != nil {
			return nil, err
		}
	}
	if !s.Active {
		return nil, domain.NewError(domain.KindUserHasNoActiveSession, userID)
	}
	s.Close(m.clock.Now(), true)
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("session end", "guild", guildID, "user", userID, "session", s.ID, "rooms", len(s.Rooms))
	return s, nil
}

// AttachRoom registra una sala provisionada bajo la sesión.
func (m *QueueManager) AttachRoom(ctx context.Context, s *domain.Session, roomID string) error {
	s.AddRoom(roomID)
	return m.sessions.Save(ctx, s)
}

// NotifyPickedStudents avisa a cada alumno elegido. No muta estado; los
// errores de entrega se juntan y se devuelven al final.
func (m *QueueManager) NotifyPickedStudents(ctx context.Context, guildID string, q *domain.Queue, students []domain.Member, tutor domain.Member, roomID string) error {
	tpl := q.Messages.WithDefaults().Match
	var errs []error
	for _, st := range students {
		msg := domain.Interpolate(tpl, map[string]string{
			"name":  q.Name,
			"tutor": tutor.Mention(),
			"room":  "<#" + roomID + ">",
		})
		if err := m.notify.Notify(ctx, Notification{
			GuildID: guildID,
			UserID:  st.ID,
			Event:   domain.EventMatch,
			Queue:   q,
			Content: msg,
		}); err != nil {
			m.log.Warn("notify picked student failed", "user", st.ID, "err", err)
			errs = append(errs, fmt.Errorf("notify %s: %w", st.ID, err))
		}
	}
	return errors.Join(errs...)
}

// AddQueueInfoChannel suscribe un canal de texto a eventos de la cola.
func (m *QueueManager) AddQueueInfoChannel(ctx context.Context, guildID, queueID, channelID string, events []string) error {
	evs := make([]domain.QueueEvent, 0, len(events))
	for _, raw := range events {
		ev, err := domain.ParseQueueEvent(raw)
		if err != nil {
			return err
		}
		if !slices.Contains(evs, ev) {
			evs = append(evs, ev)
		}
	}
	if len(evs) == 0 {
		evs = slices.Clone(domain.AllQueueEvents)
	}

	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		if q.InfoChannel(channelID) != nil {
			return domain.NewError(domain.KindChannelAlreadyInfoChannel, channelID)
		}
		q.InfoChannels = append(q.InfoChannels, domain.InfoChannel{ChannelID: channelID, Events: evs})
		return nil
	})
	return err
}

func (m *QueueManager) RemoveQueueInfoChannel(ctx context.Context, guildID, queueID, channelID string) error {
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		for i, ic := range q.InfoChannels {
			if ic.ChannelID == channelID {
				q.InfoChannels = slices.Delete(q.InfoChannels, i, i+1)
				return nil
			}
		}
		return domain.NewError(domain.KindChannelNotInfoChannel, channelID)
	})
	return err
}
