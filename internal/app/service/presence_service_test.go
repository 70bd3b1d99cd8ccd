package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/app/service/mocks"
	"github.com/jose-valero/office-hours-bot/internal/domain"
)

func (f *fixture) engine(gw service.Gateway) *service.Engine {
	return service.NewEngine(service.Deps{
		Guilds:   f.guilds,
		Rooms:    f.rooms,
		Sessions: f.sessions,
		Gateway:  gw,
		Notifier: f.notes,
	}, f.opts()...)
}

func (f *fixture) editQueue(t *testing.T, fn func(q *domain.Queue)) {
	t.Helper()
	g := f.guilds.get(t)
	fn(g.QueueByID("q1"))
	f.guilds.put(t, g)
}

func move(user, from, to string) service.Transition {
	return service.Transition{GuildID: guildID, UserID: user, OldChannelID: from, NewChannelID: to}
}

func TestPresence_JoinQueueChannel(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	e := f.engine(new(mocks.Gateway))

	e.Presence.Handle(context.Background(), move("U", "", "vq"))

	assert.Equal(t, []string{"U"}, entryIDs(f.queue(t).Entries))
	require.Equal(t, []domain.QueueEvent{domain.EventJoin}, f.notes.events())
	n := f.notes.last()
	assert.Contains(t, n.Content, "position 1/1")
	require.NotNil(t, n.Queue)
	assert.Equal(t, []string{"U"}, entryIDs(n.Queue.Entries))
}

func TestPresence_ReconnectWithinWindowStays(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("U", t0.Add(-time.Minute)))
	ctx := context.Background()
	e := f.engine(new(mocks.Gateway))

	e.Presence.Handle(ctx, move("U", "vq", ""))
	assert.Equal(t, []string{"U"}, entryIDs(f.queue(t).Entries))
	assert.True(t, e.Queues.IsPendingRemoval("q1", "U"))

	f.clock.Advance(2 * time.Second)
	e.Presence.Handle(ctx, move("U", "", "vq"))
	f.clock.Advance(4 * time.Second)

	assert.Equal(t, []string{"U"}, entryIDs(f.queue(t).Entries))
	assert.Equal(t, []domain.QueueEvent{domain.EventConfirmLeave, domain.EventStay}, f.notes.events())
}

func TestPresence_SubmitKeepsArrivalOrder(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("U", t0.Add(-time.Minute)))
	e := f.engine(new(mocks.Gateway))

	// desconexión y reconexión rápidas: la salida se procesa primero
	e.Presence.Submit(move("U", "vq", ""))
	e.Presence.Submit(move("U", "", "vq"))
	e.Presence.Drain()
	f.clock.Advance(6 * time.Second)

	assert.Equal(t, []string{"U"}, entryIDs(f.queue(t).Entries))
	assert.False(t, e.Queues.IsPendingRemoval("q1", "U"))
	assert.Equal(t, []domain.QueueEvent{domain.EventConfirmLeave, domain.EventStay}, f.notes.events())
}

func TestPresence_SubmitBurstIsSequential(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	e := f.engine(new(mocks.Gateway))

	var want []domain.QueueEvent
	for i := 0; i < 10; i++ {
		e.Presence.Submit(move("U", "", "vq"))
		e.Presence.Submit(move("U", "vq", ""))
		want = append(want, domain.EventJoin, domain.EventLeave)
	}
	e.Presence.Drain()

	assert.Empty(t, f.queue(t).Entries)
	assert.Equal(t, want, f.notes.events())
}

func TestPresence_DisconnectTimesOut(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("U", t0.Add(-time.Minute)))
	e := f.engine(new(mocks.Gateway))

	e.Presence.Handle(context.Background(), move("U", "vq", ""))
	f.clock.Advance(5 * time.Second)

	assert.Empty(t, f.queue(t).Entries)
	assert.Equal(t, []domain.QueueEvent{domain.EventConfirmLeave, domain.EventLeave}, f.notes.events())
}

func TestPresence_ImmediateLeave(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0, domain.NewQueueEntry("U", t0))
	e := f.engine(new(mocks.Gateway))

	e.Presence.Handle(context.Background(), move("U", "vq", "elsewhere"))

	assert.Empty(t, f.queue(t).Entries)
	assert.Equal(t, []domain.QueueEvent{domain.EventLeave}, f.notes.events())
	assert.Empty(t, f.notes.last().Queue.Entries)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestPresence_LockedQueueDisconnects(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0, domain.NewQueueEntry("W", t0))
	f.editQueue(t, func(q *domain.Queue) { q.Locked = true })
	gw := new(mocks.Gateway)
	gw.On("MoveMember", mock.Anything, guildID, "U", nowhere).Return(nil).Once()
	e := f.engine(gw)

	e.Presence.Handle(context.Background(), move("U", "", "vq"))

	assert.Equal(t, []string{"W"}, entryIDs(f.queue(t).Entries))
	assert.Equal(t, []domain.QueueEvent{domain.EventLocked}, f.notes.events())
	gw.AssertExpectations(t)
}

func TestPresence_ExemptRoleIgnored(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	f.editQueue(t, func(q *domain.Queue) { q.ExemptRoles = []string{"r-tutor"} })
	gw := new(mocks.Gateway)
	gw.On("Member", mock.Anything, guildID, "T").Return(domain.Member{ID: "T", Roles: []string{"r-tutor"}}, nil)
	e := f.engine(gw)

	e.Presence.Handle(context.Background(), move("T", "", "vq"))

	assert.Empty(t, f.queue(t).Entries)
	assert.Empty(t, f.notes.events())
}

func TestPresence_JoinErrorBecomesNotification(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	ctx := context.Background()
	e := f.engine(new(mocks.Gateway))
	labs, err := e.Queues.CreateQueue(ctx, guildID, service.NewQueue{Name: "Labs", ChannelID: "vlabs", DisconnectTimeout: 60000})
	require.NoError(t, err)
	e.Presence.Handle(ctx, move("U", "", "vlabs"))

	// sigue en Labs mientras corre la ventana de desconexión
	e.Presence.Handle(ctx, move("U", "vlabs", "vq"))

	assert.Equal(t, []domain.QueueEvent{domain.EventJoin, domain.EventConfirmLeave, domain.EventError}, f.notes.events())
	assert.ErrorIs(t, f.notes.last().Err, domain.ErrAlreadyInQueue)
	assert.Empty(t, f.queue(t).Entries)
	assert.True(t, e.Queues.IsPendingRemoval(labs.ID, "U"))
}

func TestPresence_MuteOnlyIsNoop(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0, domain.NewQueueEntry("U", t0))
	gw := new(mocks.Gateway)
	e := f.engine(gw)

	e.Presence.Handle(context.Background(), move("U", "vq", "vq"))

	assert.Empty(t, f.notes.events())
	assert.Equal(t, []string{"U"}, entryIDs(f.queue(t).Entries))
	gw.AssertExpectations(t)
}

func TestPresence_LastOccupantClosesRoom(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	f.seedRoom(t)
	require.NoError(t, f.rooms.Create(context.Background(), domain.NewRoom(guildID, "R", t0)))
	gw := new(mocks.Gateway)
	gw.On("Occupants", mock.Anything, guildID, "R").Return([]string{}, nil)
	gw.On("DeleteChannel", mock.Anything, "R").Return(nil).Once()
	e := f.engine(gw)
	saves := f.guilds.saveCount()

	e.Presence.Handle(context.Background(), move("A", "R", ""))

	gw.AssertExpectations(t)
	assert.Equal(t, saves, f.guilds.saveCount())
	room, err := f.rooms.Find(context.Background(), "R")
	require.NoError(t, err)
	assert.False(t, room.Active)
	assert.Equal(t, []domain.RoomEventKind{domain.RoomUserLeave, domain.RoomDeleted}, f.rooms.kinds("R"))
}

func TestPresence_RoomStillOccupied(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	f.seedRoom(t)
	require.NoError(t, f.rooms.Create(context.Background(), domain.NewRoom(guildID, "R", t0)))
	gw := new(mocks.Gateway)
	gw.On("Occupants", mock.Anything, guildID, "R").Return([]string{"B"}, nil)
	e := f.engine(gw)

	e.Presence.Handle(context.Background(), move("A", "R", ""))

	gw.AssertNotCalled(t, "DeleteChannel", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.RoomEventKind{domain.RoomUserLeave}, f.rooms.kinds("R"))
}

func TestPresence_TrackedChannelAudit(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	f.seedRoom(t)
	e := f.engine(new(mocks.Gateway))

	// primera observación: crea el log
	e.Presence.Handle(context.Background(), move("B", "", "R"))
	// canal sin registro ni log: no-op
	e.Presence.Handle(context.Background(), move("B", "", "lounge"))

	assert.Equal(t, []domain.RoomEventKind{domain.RoomUserJoin}, f.rooms.kinds("R"))
	_, err := f.rooms.Find(context.Background(), "lounge")
	assert.Error(t, err)
	assert.Empty(t, f.notes.events())
}
