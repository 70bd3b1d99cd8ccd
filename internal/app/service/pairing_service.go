package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// PickResult es lo que devuelve un pick exitoso.
type PickResult struct {
	Queue    *domain.Queue
	Room     *domain.VoiceChannel
	Students []domain.Member
	// Moved son los ids que efectivamente quedaron en la sala.
	Moved []string
	// Dropped son entradas de usuarios que ya no están en el guild.
	Dropped []string
}

// PairingService junta una cola con una sala: saca a los próximos alumnos
// y los lleva con el tutor a una sala nueva.
type PairingService struct {
	queues *QueueManager
	rooms  *RoomManager
	gw     Gateway
	log    *slog.Logger
}

func NewPairingService(queues *QueueManager, rooms *RoomManager, gw Gateway, opts ...Option) *PairingService {
	o := buildOptions(opts)
	return &PairingService{queues: queues, rooms: rooms, gw: gw, log: o.logger.With("component", "pairing")}
}

// Pick toma hasta count alumnos de la cola de la sesión activa del tutor.
func (p *PairingService) Pick(ctx context.Context, guildID string, tutor domain.Member, count int, currentMembers []string) (*PickResult, error) {
	if count <= 0 {
		count = 1
	}
	s, err := p.queues.ActiveSession(ctx, guildID, tutor.ID)
	if err != nil {
		return nil, err
	}
	if s.QueueID == "" {
		return nil, domain.NewError(domain.KindSessionHasNoQueue, s.ID)
	}

	res := &PickResult{}
	if currentMembers != nil {
		if res.Dropped, err = p.queues.KickNonServerMembers(ctx, guildID, currentMembers, s.QueueID); err != nil {
			return nil, err
		}
	}

	entries, q, err := p.queues.TakeNext(ctx, guildID, s.QueueID, count)
	if err != nil {
		return nil, err
	}
	res.Queue = q

	students := make([]domain.Member, 0, len(entries))
	for _, e := range entries {
		m, err := p.gw.Member(ctx, guildID, e.UserID)
		if err != nil {
			p.log.Warn("pick: member lookup failed", "guild", guildID, "user", e.UserID, "err", err)
			m = domain.Member{ID: e.UserID, DisplayName: e.UserID}
		}
		students = append(students, m)
	}
	res.Students = students

	room, err := p.rooms.CreateTutoringVoiceChannel(ctx, guildID, q, tutor, students, len(s.Rooms)+1)
	if err != nil {
		if rerr := p.queues.restoreEntries(ctx, guildID, q.ID, entries); rerr != nil {
			p.log.Error("pick: restore entries failed", "guild", guildID, "queue", q.ID, "err", rerr)
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	res.Room = room

	ids := append([]string{tutor.ID}, domain.MemberIDs(students)...)
	if res.Moved, err = p.rooms.MoveMembersToRoom(ctx, guildID, ids, room.ChannelID, tutor.ID, q); err != nil {
		p.log.Warn("pick: audit move failed", "guild", guildID, "room", room.ChannelID, "err", err)
	}
	if err := p.queues.AttachRoom(ctx, s, room.ChannelID); err != nil {
		return res, err
	}
	if err := p.queues.NotifyPickedStudents(ctx, guildID, q, students, tutor, room.ChannelID); err != nil {
		p.log.Warn("pick: some students were not notified", "guild", guildID, "err", err)
	}
	p.log.Info("pick", "guild", guildID, "queue", q.ID, "tutor", tutor.ID, "room", room.ChannelID, "students", len(students))
	return res, nil
}
