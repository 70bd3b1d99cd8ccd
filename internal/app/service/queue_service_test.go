package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

func TestJoinQueue_FirstEntry(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	qm := f.queues()

	msg, err := qm.JoinQueue(context.Background(), guildID, "q1", "u1")
	require.NoError(t, err)

	assert.Contains(t, msg, "position 1/1")
	assert.Contains(t, msg, "Office Hours")
	q := f.queue(t)
	require.Len(t, q.Entries, 1)
	assert.Equal(t, "u1", q.Entries[0].UserID)
	assert.Equal(t, t0, q.Entries[0].JoinedAt)
}

func TestJoinQueue_UserInAtMostOneQueue(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	ctx := context.Background()
	qm := f.queues()
	_, err := qm.CreateQueue(ctx, guildID, service.NewQueue{Name: "Labs", ChannelID: "vlabs"})
	require.NoError(t, err)
	labs, err := qm.GetQueue(ctx, guildID, "labs")
	require.NoError(t, err)

	_, err = qm.JoinQueue(ctx, guildID, "q1", "u1")
	require.NoError(t, err)
	_, err = qm.JoinQueue(ctx, guildID, labs.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyInQueue)
	_, err = qm.JoinQueue(ctx, guildID, "q1", "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyInQueue)

	g := f.guilds.get(t)
	total := 0
	for _, q := range g.Queues {
		if q.HasEntry("u1") {
			total++
		}
	}
	assert.Equal(t, 1, total)
}

func TestJoinQueue_LockedDoesNotMutate(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0, domain.NewQueueEntry("u0", t0.Add(-time.Minute)))
	qm := f.queues()
	_, err := qm.SetLocked(context.Background(), guildID, "q1", true)
	require.NoError(t, err)
	before := f.guilds.saveCount()

	_, err = qm.JoinQueue(context.Background(), guildID, "q1", "u1")

	assert.ErrorIs(t, err, domain.ErrQueueLocked)
	assert.Equal(t, []string{"u0"}, entryIDs(f.queue(t).Entries))
	assert.Equal(t, before, f.guilds.saveCount())
}

func TestJoinQueue_UnknownQueue(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)

	_, err := f.queues().JoinQueue(context.Background(), guildID, "nope", "u1")

	assert.ErrorIs(t, err, domain.ErrCouldNotFindQueue)
}

func TestLeaveThenJoin_GetsFreshTimestamp(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	ctx := context.Background()
	qm := f.queues()

	_, err := qm.JoinQueue(ctx, guildID, "q1", "u1")
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	msg, err := qm.LeaveQueue(ctx, guildID, "u1")
	require.NoError(t, err)
	assert.Contains(t, msg, "3m 00s")
	assert.Empty(t, f.queue(t).Entries)

	f.clock.Advance(time.Minute)
	_, err = qm.JoinQueue(ctx, guildID, "q1", "u1")
	require.NoError(t, err)

	q := f.queue(t)
	require.Len(t, q.Entries, 1)
	assert.Equal(t, t0.Add(4*time.Minute), q.Entries[0].JoinedAt)
}

func TestLeaveQueue_NotInQueue(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)

	_, err := f.queues().LeaveQueue(context.Background(), guildID, "ghost")

	assert.ErrorIs(t, err, domain.ErrNotInQueue)
	assert.Equal(t, domain.KindNotInQueue, domain.KindOf(err))
}

func TestLeaveQueueWithTimeout_FiresAfterWindow(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	qm := f.queues()

	msg, err := qm.LeaveQueueWithTimeout(context.Background(), guildID, f.queue(t), "u1")
	require.NoError(t, err)
	assert.Contains(t, msg, "5s")
	assert.True(t, qm.IsPendingRemoval("q1", "u1"))
	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))

	f.clock.Advance(4999 * time.Millisecond)
	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))

	f.clock.Advance(time.Millisecond)
	assert.Empty(t, f.queue(t).Entries)
	assert.False(t, qm.IsPendingRemoval("q1", "u1"))
	assert.Equal(t, []domain.QueueEvent{domain.EventLeave}, f.notes.events())
	assert.Equal(t, "u1", f.notes.last().UserID)
}

func TestStayInQueue_CancelsPendingRemoval(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	qm := f.queues()

	_, err := qm.LeaveQueueWithTimeout(context.Background(), guildID, f.queue(t), "u1")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Second)

	assert.True(t, qm.StayInQueue(f.queue(t), "u1"))
	f.clock.Advance(time.Minute)

	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))
	assert.Empty(t, f.notes.events())
	assert.Equal(t, 0, f.clock.Pending())
}

func TestStayInQueue_WithoutMarkerIsNoop(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	qm := f.queues()
	before := f.guilds.saveCount()

	assert.False(t, qm.StayInQueue(f.queue(t), "u1"))

	assert.Equal(t, before, f.guilds.saveCount())
	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))
}

func TestLeaveQueueWithTimeout_RearmRestartsWindow(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	ctx := context.Background()
	qm := f.queues()

	_, err := qm.LeaveQueueWithTimeout(ctx, guildID, f.queue(t), "u1")
	require.NoError(t, err)
	f.clock.Advance(3 * time.Second)
	_, err = qm.LeaveQueueWithTimeout(ctx, guildID, f.queue(t), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.clock.Pending())

	// la primera ventana habría vencido acá
	f.clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))

	f.clock.Advance(2 * time.Second)
	assert.Empty(t, f.queue(t).Entries)
	assert.Len(t, f.notes.events(), 1)
}

func TestLeaveQueueWithTimeout_ZeroIsImmediate(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0, domain.NewQueueEntry("u1", t0))
	qm := f.queues()

	_, err := qm.LeaveQueueWithTimeout(context.Background(), guildID, f.queue(t), "u1")
	require.NoError(t, err)

	assert.Empty(t, f.queue(t).Entries)
	assert.False(t, qm.IsPendingRemoval("q1", "u1"))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestPendingRemoval_UserAlreadyGone(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	ctx := context.Background()
	qm := f.queues()

	_, err := qm.LeaveQueueWithTimeout(ctx, guildID, f.queue(t), "u1")
	require.NoError(t, err)
	_, _, err = qm.TakeNext(ctx, guildID, "q1", 1)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)

	assert.Empty(t, f.notes.events())
}

func TestPendingRemoval_WaitsForGuildLock(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	qm := f.queues()

	_, err := qm.LeaveQueueWithTimeout(context.Background(), guildID, f.queue(t), "u1")
	require.NoError(t, err)

	unlock := qm.LockGuild(guildID)
	fired := make(chan struct{})
	go func() {
		f.clock.Advance(5 * time.Second)
		close(fired)
	}()
	// el timer ya venció y espera el lock; el reconnect que lo tiene gana
	require.Eventually(t, func() bool { return f.clock.Pending() == 0 }, time.Second, time.Millisecond)
	assert.True(t, qm.StayInQueue(f.queue(t), "u1"))
	unlock()
	<-fired

	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))
	assert.Empty(t, f.notes.events())
}

func TestGetSortedEntries(t *testing.T) {
	q := &domain.Queue{Entries: []domain.QueueEntry{
		domain.NewQueueEntry("c", t0.Add(2*time.Second)),
		domain.NewQueueEntry("a", t0),
		domain.NewQueueEntry("tie1", t0.Add(time.Second)),
		domain.NewQueueEntry("tie2", t0.Add(time.Second)),
	}}
	qm := newFixture().queues()

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"zero", 0, []string{}},
		{"negative", -3, []string{}},
		{"two", 2, []string{"a", "tie1"}},
		{"all", 10, []string{"a", "tie1", "tie2", "c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := qm.GetSortedEntries(q, tc.limit)
			assert.Equal(t, tc.want, entryIDs(got))
		})
	}
}

func TestKickNonServerMembers(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000,
		domain.NewQueueEntry("stay", t0),
		domain.NewQueueEntry("gone", t0.Add(time.Second)),
	)
	ctx := context.Background()
	qm := f.queues()
	_, err := qm.LeaveQueueWithTimeout(ctx, guildID, f.queue(t), "gone")
	require.NoError(t, err)

	removed, err := qm.KickNonServerMembers(ctx, guildID, []string{"stay", "other"}, "q1")
	require.NoError(t, err)

	assert.Equal(t, []string{"gone"}, removed)
	assert.Equal(t, []string{"stay"}, entryIDs(f.queue(t).Entries))
	assert.False(t, qm.IsPendingRemoval("q1", "gone"))
	assert.Empty(t, f.notes.events())
}

func TestTakeNext_EmptyQueue(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)

	_, _, err := f.queues().TakeNext(context.Background(), guildID, "q1", 2)

	assert.ErrorIs(t, err, domain.ErrQueueIsEmpty)
}

func TestUpdateGuild_RetriesOnConflict(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	qm := f.queues()

	f.guilds.conflicts = 2
	_, err := qm.JoinQueue(context.Background(), guildID, "q1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, entryIDs(f.queue(t).Entries))

	f.guilds.conflicts = 3
	_, err = qm.JoinQueue(context.Background(), guildID, "q1", "u2")
	assert.True(t, errors.Is(err, storage.ErrConflict))
	assert.False(t, domain.IsDomain(err))
}

func TestInfoChannels(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	ctx := context.Background()
	qm := f.queues()

	require.NoError(t, qm.AddQueueInfoChannel(ctx, guildID, "q1", "txt", []string{"join", "leave"}))
	err := qm.AddQueueInfoChannel(ctx, guildID, "q1", "txt", nil)
	assert.ErrorIs(t, err, domain.ErrChannelAlreadyInfoChannel)

	err = qm.AddQueueInfoChannel(ctx, guildID, "q1", "txt2", []string{"explode"})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	require.NoError(t, qm.AddQueueInfoChannel(ctx, guildID, "q1", "all", nil))
	q := f.queue(t)
	assert.True(t, q.InfoChannel("txt").Subscribed(domain.EventJoin))
	assert.False(t, q.InfoChannel("txt").Subscribed(domain.EventMatch))
	assert.ElementsMatch(t, domain.AllQueueEvents, q.InfoChannel("all").Events)

	require.NoError(t, qm.RemoveQueueInfoChannel(ctx, guildID, "q1", "txt"))
	err = qm.RemoveQueueInfoChannel(ctx, guildID, "q1", "txt")
	assert.ErrorIs(t, err, domain.ErrChannelNotInfoChannel)
}

func TestTutorSessions(t *testing.T) {
	f := newFixture()
	q := f.seedQueue(t, 0)
	ctx := context.Background()
	qm := f.queues()

	_, err := qm.EndTutorSession(ctx, guildID, nil, "tutor")
	assert.ErrorIs(t, err, domain.ErrUserHasNoActiveSession)

	s, err := qm.StartTutorSession(ctx, guildID, q, "tutor")
	require.NoError(t, err)
	assert.Equal(t, "q1", s.QueueID)
	assert.Equal(t, domain.RoleCoach, s.Role)

	_, err = qm.StartTutorSession(ctx, guildID, q, "tutor")
	assert.ErrorIs(t, err, domain.ErrUserHasActiveSession)

	f.clock.Advance(time.Hour)
	ended, err := qm.EndTutorSession(ctx, guildID, nil, "tutor")
	require.NoError(t, err)
	assert.False(t, ended.Active)
	assert.True(t, ended.EndCertain)
	assert.Equal(t, time.Hour, ended.Duration(f.clock.Now()))

	_, err = qm.ActiveSession(ctx, guildID, "tutor")
	assert.ErrorIs(t, err, domain.ErrUserHasNoActiveSession)
}

func TestStartTutorSession_ConcurrentCreateIsActiveSession(t *testing.T) {
	f := newFixture()
	q := f.seedQueue(t, 0)
	f.sessions.createErr = storage.ErrConflict

	_, err := f.queues().StartTutorSession(context.Background(), guildID, q, "tutor")

	assert.ErrorIs(t, err, domain.ErrUserHasActiveSession)
}

func TestNotifyPickedStudents_JoinsErrors(t *testing.T) {
	f := newFixture()
	q := f.seedQueue(t, 0)
	f.notes.err = errors.New("dm closed")
	students := []domain.Member{{ID: "s1"}, {ID: "s2"}}

	err := f.queues().NotifyPickedStudents(context.Background(), guildID, q, students, domain.Member{ID: "tutor"}, "room1")

	require.Error(t, err)
	assert.Len(t, f.notes.events(), 2)
	assert.Contains(t, f.notes.last().Content, "<@tutor>")
	assert.Contains(t, f.notes.last().Content, "<#room1>")
}

func TestCreateQueue(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	ctx := context.Background()
	qm := f.queues()

	_, err := qm.CreateQueue(ctx, guildID, service.NewQueue{Name: "office hours", ChannelID: "v2"})
	assert.ErrorIs(t, err, domain.ErrQueueAlreadyExists)

	_, err = qm.CreateQueue(ctx, guildID, service.NewQueue{Name: "Labs", ChannelID: "vq"})
	assert.ErrorIs(t, err, domain.ErrChannelAlreadyInUse)

	q, err := qm.CreateQueue(ctx, guildID, service.NewQueue{Name: " Labs ", ChannelID: "v2", DisconnectTimeout: -5})
	require.NoError(t, err)
	assert.Equal(t, "Labs", q.Name)
	assert.Zero(t, q.DisconnectTimeout)
	assert.Equal(t, t0, q.OpenedAt)
	assert.Equal(t, q.ID, f.guilds.get(t).VoiceChannel("v2").QueueID)
}

func TestDeleteQueue_ClearsPendingRemovals(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 5000, domain.NewQueueEntry("u1", t0))
	ctx := context.Background()
	qm := f.queues()
	_, err := qm.LeaveQueueWithTimeout(ctx, guildID, f.queue(t), "u1")
	require.NoError(t, err)

	require.NoError(t, qm.DeleteQueue(ctx, guildID, "q1"))

	assert.False(t, qm.IsPendingRemoval("q1", "u1"))
	assert.Nil(t, f.guilds.get(t).VoiceChannel("vq"))
	_, err = qm.GetQueueByID(ctx, guildID, "q1")
	assert.ErrorIs(t, err, domain.ErrCouldNotFindQueue)
}

func TestSetLocked_UnlockResetsOpenedAt(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	ctx := context.Background()
	qm := f.queues()

	_, err := qm.SetLocked(ctx, guildID, "q1", true)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	q, err := qm.SetLocked(ctx, guildID, "q1", false)
	require.NoError(t, err)

	assert.False(t, q.Locked)
	assert.Equal(t, t0.Add(time.Hour), q.OpenedAt)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture()
	f.seedQueue(t, 0)
	desc := "Mondays"
	timeout := int64(30000)

	q, err := f.queues().UpdateSettings(context.Background(), guildID, "q1", service.QueueSettingsPatch{
		Description:       &desc,
		DisconnectTimeout: &timeout,
		Messages:          &domain.QueueMessages{Join: "hi {name}"},
		RoomSpawner:       &domain.RoomSpawner{MaxUsers: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "Mondays", q.Description)
	assert.Equal(t, 30*time.Second, q.Timeout())
	assert.Equal(t, "hi {name}", q.Messages.Join)
	assert.Equal(t, domain.DefaultLeaveMessage, q.Messages.WithDefaults().Leave)
	require.NotNil(t, q.RoomSpawner)
	assert.Equal(t, 3, q.RoomSpawner.MaxUsers)
}
