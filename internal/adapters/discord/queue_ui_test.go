package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func panelQueue() *domain.Queue {
	return &domain.Queue{
		ID:          "q1",
		Name:        "Office Hours",
		Description: "Consultas de la semana",
		Entries: []domain.QueueEntry{
			domain.NewQueueEntry("a", t0.Add(-2*time.Minute)),
			domain.NewQueueEntry("b", t0.Add(-time.Minute)),
		},
	}
}

func TestRenderPanel(t *testing.T) {
	q := panelQueue()
	pending := func(queueID, userID string) bool { return queueID == "q1" && userID == "b" }

	embed, row := renderPanel(q, q.SortedEntries(10), pending, t0)

	assert.Equal(t, "🎓 Office Hours", embed.Title)
	assert.Contains(t, embed.Description, "Consultas de la semana")
	assert.Contains(t, embed.Description, "1) <@a>")
	assert.Contains(t, embed.Description, "2) <@b>")
	assert.Contains(t, embed.Description, "(desconectado)")
	assert.Contains(t, embed.Footer.Text, "2 en espera")
	assert.Equal(t, t0.Format(time.RFC3339), embed.Timestamp)

	require.Len(t, row.Components, 2)
	assert.Equal(t, "queue_leave:q1", row.Components[0].(discordgo.Button).CustomID)
	assert.Equal(t, "admin_panel:q1", row.Components[1].(discordgo.Button).CustomID)
}

func TestRenderPanel_LockedAndEmpty(t *testing.T) {
	q := &domain.Queue{ID: "q2", Name: "Labs", Locked: true}

	embed, _ := renderPanel(q, nil, nil, t0)

	assert.Equal(t, "🎓 Labs 🔒", embed.Title)
	assert.Equal(t, "Nadie en cola.", embed.Description)
}

func TestFormatQueueList(t *testing.T) {
	assert.Contains(t, formatQueueList(nil), "No hay colas")

	locked := panelQueue()
	locked.Locked = true
	out := formatQueueList([]*domain.Queue{locked, {Name: "Labs"}})
	assert.Contains(t, out, "**Office Hours** — 2 en espera · 🔒")
	assert.Contains(t, out, "**Labs** — 0 en espera\n")
}

func TestSetMessage(t *testing.T) {
	var m domain.QueueMessages
	assert.NoError(t, setMessage(&m, domain.EventStay, "hola {name}"))
	assert.NoError(t, setMessage(&m, domain.EventMatch, "a {room}"))
	assert.Equal(t, "hola {name}", m.Stay)
	assert.Equal(t, "a {room}", m.Match)

	err := setMessage(&m, domain.EventError, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestKickMenu(t *testing.T) {
	q := panelQueue()
	row := kickMenu("q1", q.SortedEntries(10), func(id string) string { return "user-" + id })

	menu := row.Components[0].(discordgo.SelectMenu)
	assert.Equal(t, "kick_select:q1", menu.CustomID)
	require.Len(t, menu.Options, 2)
	assert.Equal(t, "01) user-a", menu.Options[0].Label)
	assert.Equal(t, "uid:b", menu.Options[1].Value)
}
