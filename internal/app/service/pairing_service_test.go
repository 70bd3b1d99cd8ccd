package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/office-hours-bot/internal/app/service/mocks"
	"github.com/jose-valero/office-hours-bot/internal/domain"
)

var tutor = domain.Member{ID: "T", DisplayName: "Ada", Roles: []string{"r-tutor"}}

func seedWaiting(t *testing.T, f *fixture) *domain.Queue {
	t.Helper()
	return f.seedQueue(t, 0,
		domain.NewQueueEntry("s3", t0),
		domain.NewQueueEntry("s1", t0.Add(-2*time.Minute)),
		domain.NewQueueEntry("s2", t0.Add(-time.Minute)),
	)
}

func studentLookups(gw *mocks.Gateway, ids ...string) {
	for _, id := range ids {
		gw.On("Member", mock.Anything, guildID, id).Return(domain.Member{ID: id, DisplayName: id}, nil)
	}
}

func TestPick_TakesEarliestAndProvisionsRoom(t *testing.T) {
	f := newFixture()
	q := seedWaiting(t, f)
	ctx := context.Background()
	gw := new(mocks.Gateway)
	studentLookups(gw, "s1", "s2")
	gw.On("CreateVoiceChannel", mock.Anything, guildID, mock.MatchedBy(func(spec domain.ChannelSpec) bool {
		return spec.Name == "Ada's room #1"
	})).Return("room1", nil).Once()
	gw.On("MoveMember", mock.Anything, guildID, mock.Anything, mock.Anything).Return(nil)
	e := f.engine(gw)
	_, err := e.Queues.StartTutorSession(ctx, guildID, q, tutor.ID)
	require.NoError(t, err)

	res, err := e.Pairing.Pick(ctx, guildID, tutor, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2"}, domain.MemberIDs(res.Students))
	assert.Equal(t, "room1", res.Room.ChannelID)
	assert.Equal(t, []string{"T", "s1", "s2"}, res.Moved)
	assert.Equal(t, []string{"s3"}, entryIDs(f.queue(t).Entries))

	s, err := e.Queues.ActiveSession(ctx, guildID, tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"room1"}, s.Rooms)
	assert.Equal(t, []domain.QueueEvent{domain.EventMatch, domain.EventMatch}, f.notes.events())
	gw.AssertNumberOfCalls(t, "MoveMember", 3)
}

func TestPick_DropsNonMembersFirst(t *testing.T) {
	f := newFixture()
	q := seedWaiting(t, f)
	ctx := context.Background()
	gw := new(mocks.Gateway)
	studentLookups(gw, "s2")
	gw.On("CreateVoiceChannel", mock.Anything, guildID, mock.Anything).Return("room1", nil)
	gw.On("MoveMember", mock.Anything, guildID, mock.Anything, mock.Anything).Return(nil)
	e := f.engine(gw)
	_, err := e.Queues.StartTutorSession(ctx, guildID, q, tutor.ID)
	require.NoError(t, err)

	res, err := e.Pairing.Pick(ctx, guildID, tutor, 1, []string{"T", "s2", "s3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, res.Dropped)
	assert.Equal(t, []string{"s2"}, domain.MemberIDs(res.Students))
	assert.Equal(t, []string{"s3"}, entryIDs(f.queue(t).Entries))
}

func TestPick_RestoresEntriesWhenRoomFails(t *testing.T) {
	f := newFixture()
	q := seedWaiting(t, f)
	ctx := context.Background()
	gw := new(mocks.Gateway)
	studentLookups(gw, "s1", "s2")
	gw.On("CreateVoiceChannel", mock.Anything, guildID, mock.Anything).Return("", errors.New("rate limited"))
	e := f.engine(gw)
	_, err := e.Queues.StartTutorSession(ctx, guildID, q, tutor.ID)
	require.NoError(t, err)

	_, err = e.Pairing.Pick(ctx, guildID, tutor, 2, nil)

	assert.ErrorIs(t, err, domain.ErrChannelCouldNotBeCreated)
	assert.Equal(t, []string{"s1", "s2", "s3"}, entryIDs(f.queue(t).Entries))
	assert.Empty(t, f.notes.events())
	gw.AssertNotCalled(t, "MoveMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPick_Preconditions(t *testing.T) {
	f := newFixture()
	q := f.seedQueue(t, 0)
	ctx := context.Background()
	e := f.engine(new(mocks.Gateway))

	_, err := e.Pairing.Pick(ctx, guildID, tutor, 1, nil)
	assert.ErrorIs(t, err, domain.ErrUserHasNoActiveSession)

	_, err = e.Queues.StartTutorSession(ctx, guildID, nil, tutor.ID)
	require.NoError(t, err)
	_, err = e.Pairing.Pick(ctx, guildID, tutor, 1, nil)
	assert.ErrorIs(t, err, domain.ErrSessionHasNoQueue)

	_, err = e.Queues.EndTutorSession(ctx, guildID, nil, tutor.ID)
	require.NoError(t, err)
	_, err = e.Queues.StartTutorSession(ctx, guildID, q, tutor.ID)
	require.NoError(t, err)
	_, err = e.Pairing.Pick(ctx, guildID, tutor, 1, nil)
	assert.ErrorIs(t, err, domain.ErrQueueIsEmpty)
}
