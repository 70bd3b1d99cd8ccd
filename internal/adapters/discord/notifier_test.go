package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/domain"
)

type sent struct{ to, content string }

type fakeMessenger struct {
	dms, posts []sent
	dmErr      error
}

func (f *fakeMessenger) DM(_ context.Context, userID, content string) error {
	f.dms = append(f.dms, sent{userID, content})
	return f.dmErr
}

func (f *fakeMessenger) Send(_ context.Context, channelID, content string) error {
	f.posts = append(f.posts, sent{channelID, content})
	return nil
}

func infoQueue() *domain.Queue {
	q := panelQueue()
	q.InfoChannels = []domain.InfoChannel{
		{ChannelID: "c-join", Events: []domain.QueueEvent{domain.EventJoin}},
		{ChannelID: "c-all", Events: domain.AllQueueEvents},
	}
	return q
}

func TestNotifier_DMAndSubscribedChannels(t *testing.T) {
	out := &fakeMessenger{}
	n := newNotifier(out, nil)
	var changed []string
	n.OnQueueChange(func(guildID, queueID string) { changed = append(changed, guildID+"/"+queueID) })

	err := n.Notify(context.Background(), service.Notification{
		GuildID: "g1", UserID: "u1", Event: domain.EventLeave, Queue: infoQueue(), Content: "bye",
	})
	require.NoError(t, err)

	assert.Equal(t, []sent{{"u1", "bye"}}, out.dms)
	require.Len(t, out.posts, 1)
	assert.Equal(t, "c-all", out.posts[0].to)
	assert.Contains(t, out.posts[0].content, "<@u1>")
	assert.Equal(t, []string{"g1/q1"}, changed)
}

func TestNotifier_ErrorEventUsesDescription(t *testing.T) {
	out := &fakeMessenger{}
	n := newNotifier(out, nil)
	n.OnQueueChange(func(string, string) { t.Fatal("errors must not refresh panels") })

	err := n.Notify(context.Background(), service.Notification{
		GuildID: "g1", UserID: "u1", Event: domain.EventError, Err: domain.NewError(domain.KindAlreadyInQueue, "u1"),
	})
	require.NoError(t, err)

	require.Len(t, out.dms, 1)
	assert.Equal(t, describeError(domain.ErrAlreadyInQueue), out.dms[0].content)
	assert.Empty(t, out.posts)
}

func TestNotifier_DMFailureStillPosts(t *testing.T) {
	out := &fakeMessenger{dmErr: errors.New("dms closed")}
	n := newNotifier(out, nil)

	err := n.Notify(context.Background(), service.Notification{
		GuildID: "g1", UserID: "u1", Event: domain.EventJoin, Queue: infoQueue(), Content: "hi",
	})

	assert.ErrorContains(t, err, "dms closed")
	assert.Len(t, out.posts, 2)
}
