package domain

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// QueueEntry es un participante esperando en la cola.
type QueueEntry struct {
	UserID     string    `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
	Importance int       `json:"importance,omitempty"`
	Intent     string    `json:"intent,omitempty"`
}

// NewQueueEntry crea una entrada con el timestamp de llegada dado.
func NewQueueEntry(userID string, at time.Time) QueueEntry {
	return QueueEntry{UserID: userID, JoinedAt: at.UTC(), Importance: 1}
}

// QueueMessages son las plantillas de mensajes de la cola ({var}).
type QueueMessages struct {
	Join         string `json:"join,omitempty"`
	Stay         string `json:"stay,omitempty"`
	Leave        string `json:"leave,omitempty"`
	ConfirmLeave string `json:"confirm_leave,omitempty"`
	Locked       string `json:"locked,omitempty"`
	Match        string `json:"match,omitempty"`
}

const (
	DefaultJoinMessage         = "You joined **{name}**. You are at position {position}/{total} (queue open for {since_open})."
	DefaultStayMessage         = "Welcome back! You kept your place in **{name}**."
	DefaultLeaveMessage        = "You left **{name}** after waiting {time_spent}."
	DefaultConfirmLeaveMessage = "You disconnected from **{name}**. Rejoin within {timeout} to keep your place."
	DefaultLockedMessage       = "**{name}** is locked right now. Try again later."
	DefaultMatchMessage        = "{tutor} picked you from **{name}**. Head to {room}."
)

// WithDefaults completa las plantillas vacías.
func (m QueueMessages) WithDefaults() QueueMessages {
	def := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return QueueMessages{
		Join:         def(m.Join, DefaultJoinMessage),
		Stay:         def(m.Stay, DefaultStayMessage),
		Leave:        def(m.Leave, DefaultLeaveMessage),
		ConfirmLeave: def(m.ConfirmLeave, DefaultConfirmLeaveMessage),
		Locked:       def(m.Locked, DefaultLockedMessage),
		Match:        def(m.Match, DefaultMatchMessage),
	}
}

// InfoChannel es un canal de texto suscrito a eventos de la cola.
type InfoChannel struct {
	ChannelID string       `json:"channel_id"`
	Events    []QueueEvent `json:"events"`
}

// Subscribed reporta si el canal escucha el evento.
func (c InfoChannel) Subscribed(ev QueueEvent) bool {
	return slices.Contains(c.Events, ev)
}

// Queue es una fila de espera de un guild, atada a un canal de voz de entrada.
type Queue struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Entries           []QueueEntry  `json:"entries"`
	Locked            bool          `json:"locked"`
	DisconnectTimeout int64         `json:"disconnect_timeout_ms"`
	OpenedAt          time.Time     `json:"opened_at"`
	Messages          QueueMessages `json:"messages"`
	InfoChannels      []InfoChannel `json:"info_channels,omitempty"`
	ExemptRoles       []string      `json:"exempt_roles,omitempty"`
	RoomSpawner       *RoomSpawner  `json:"room_spawner,omitempty"`
}

// Timeout devuelve DisconnectTimeout como duración.
func (q *Queue) Timeout() time.Duration {
	return time.Duration(q.DisconnectTimeout) * time.Millisecond
}

// EntryIndex devuelve la posición (0-based) del usuario o -1.
func (q *Queue) EntryIndex(userID string) int {
	for i, e := range q.Entries {
		if e.UserID == userID {
			return i
		}
	}
	return -1
}

func (q *Queue) HasEntry(userID string) bool { return q.EntryIndex(userID) >= 0 }

// RemoveEntry quita al usuario y devuelve la entrada removida.
func (q *Queue) RemoveEntry(userID string) (QueueEntry, bool) {
	i := q.EntryIndex(userID)
	if i < 0 {
		return QueueEntry{}, false
	}
	e := q.Entries[i]
	q.Entries = slices.Delete(q.Entries, i, i+1)
	return e, true
}

// SortedEntries devuelve hasta limit entradas por llegada ascendente.
// Timestamps iguales conservan el orden de inserción.
func (q *Queue) SortedEntries(limit int) []QueueEntry {
	if limit <= 0 || len(q.Entries) == 0 {
		return []QueueEntry{}
	}
	out := slices.Clone(q.Entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

// InfoChannel devuelve el canal de info registrado o nil.
func (q *Queue) InfoChannel(channelID string) *InfoChannel {
	for i := range q.InfoChannels {
		if q.InfoChannels[i].ChannelID == channelID {
			return &q.InfoChannels[i]
		}
	}
	return nil
}

// Clone hace copia profunda, para pasar snapshots fuera del agregado.
func (q *Queue) Clone() *Queue {
	if q == nil {
		return nil
	}
	c := *q
	c.Entries = slices.Clone(q.Entries)
	c.ExemptRoles = slices.Clone(q.ExemptRoles)
	c.InfoChannels = make([]InfoChannel, len(q.InfoChannels))
	for i, ic := range q.InfoChannels {
		c.InfoChannels[i] = InfoChannel{ChannelID: ic.ChannelID, Events: slices.Clone(ic.Events)}
	}
	if q.RoomSpawner != nil {
		rs := q.RoomSpawner.Clone()
		c.RoomSpawner = &rs
	}
	return &c
}
