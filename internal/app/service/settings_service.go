package service

import (
	"context"
	"strings"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// NewQueue son los datos para crear una cola sobre un canal de voz existente.
type NewQueue struct {
	Name              string
	Description       string
	ChannelID         string
	DisconnectTimeout int64
	ExemptRoles       []string
	Supervisors       []string
}

// QueueSettingsPatch: sólo se aplica lo que venga seteado.
type QueueSettingsPatch struct {
	Description       *string
	DisconnectTimeout *int64
	ExemptRoles       []string
	Messages          *domain.QueueMessages
	RoomSpawner       *domain.RoomSpawner
	ClearRoomSpawner  bool
}

// CreateQueue crea la cola y marca ChannelID como su punto de entrada.
func (m *QueueManager) CreateQueue(ctx context.Context, guildID string, in NewQueue) (*domain.Queue, error) {
	name := strings.TrimSpace(in.Name)
	var snap *domain.Queue
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		if g.QueueByName(name) != nil {
			return domain.NewError(domain.KindQueueAlreadyExists, name)
		}
		rec := g.VoiceChannel(in.ChannelID)
		if rec != nil && (rec.IsQueueChannel() || rec.Temporary) {
			return domain.NewError(domain.KindChannelAlreadyInUse, in.ChannelID)
		}
		q := &domain.Queue{
			ID:                m.newID(),
			Name:              name,
			Description:       in.Description,
			Entries:           []domain.QueueEntry{},
			DisconnectTimeout: max(in.DisconnectTimeout, 0),
			OpenedAt:          m.clock.Now().UTC(),
			ExemptRoles:       in.ExemptRoles,
		}
		if rec == nil {
			rec = &domain.VoiceChannel{ChannelID: in.ChannelID}
			g.VoiceChannels = append(g.VoiceChannels, rec)
		}
		rec.QueueID = q.ID
		if len(in.Supervisors) > 0 {
			rec.Supervisors = in.Supervisors
		}
		g.Queues = append(g.Queues, q)
		snap = q.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("queue created", "guild", guildID, "queue", snap.ID, "name", snap.Name, "channel", in.ChannelID)
	return snap, nil
}

// DeleteQueue borra la cola y desarma los retiros pendientes de sus entradas.
func (m *QueueManager) DeleteQueue(ctx context.Context, guildID, queueID string) error {
	var entries []domain.QueueEntry
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		entries = q.Entries
		g.RemoveQueue(queueID)
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		m.pending.clear(pendingKey{queueID: queueID, userID: e.UserID})
	}
	m.log.Info("queue deleted", "guild", guildID, "queue", queueID)
	return nil
}

// SetLocked abre o cierra la cola. Reabrir reinicia OpenedAt.
func (m *QueueManager) SetLocked(ctx context.Context, guildID, queueID string, locked bool) (*domain.Queue, error) {
	var snap *domain.Queue
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		snap = q.Clone()
		if q.Locked == locked {
			return errSkipSave
		}
		q.Locked = locked
		if !locked {
			q.OpenedAt = m.clock.Now().UTC()
		}
		snap = q.Clone()
		return nil
	})
	return snap, err
}

func (m *QueueManager) UpdateSettings(ctx context.Context, guildID, queueID string, patch QueueSettingsPatch) (*domain.Queue, error) {
	var snap *domain.Queue
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		q := g.QueueByID(queueID)
		if q == nil {
			return domain.NewError(domain.KindCouldNotFindQueue, queueID)
		}
		if patch.Description != nil {
			q.Description = *patch.Description
		}
		if patch.DisconnectTimeout != nil {
			q.DisconnectTimeout = max(*patch.DisconnectTimeout, 0)
		}
		if patch.ExemptRoles != nil {
			q.ExemptRoles = patch.ExemptRoles
		}
		if patch.Messages != nil {
			q.Messages = *patch.Messages
		}
		if patch.ClearRoomSpawner {
			q.RoomSpawner = nil
		} else if patch.RoomSpawner != nil {
			rs := patch.RoomSpawner.Clone()
			q.RoomSpawner = &rs
		}
		snap = q.Clone()
		return nil
	})
	return snap, err
}
