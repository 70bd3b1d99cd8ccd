package service_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

const guildID = "g1"

var t0 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

// memGuilds guarda el agregado serializado, igual que la tabla guilds,
// con CAS sobre la versión.
type memGuilds struct {
	mu       sync.Mutex
	data     map[string][]byte
	versions map[string]int64
	saves    int
	// conflicts fuerza ErrConflict en los próximos n Save.
	conflicts int
}

func newMemGuilds() *memGuilds {
	return &memGuilds{data: map[string][]byte{}, versions: map[string]int64{}}
}

func (m *memGuilds) Load(_ context.Context, id string) (*domain.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := domain.NewGuild(id)
	if raw, ok := m.data[id]; ok {
		if err := json.Unmarshal(raw, g); err != nil {
			return nil, err
		}
	}
	g.Version = m.versions[id]
	return g, nil
}

func (m *memGuilds) Save(_ context.Context, g *domain.Guild) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return storage.ErrConflict
	}
	if m.versions[g.ID] != g.Version {
		return storage.ErrConflict
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	m.data[g.ID] = raw
	m.versions[g.ID]++
	g.Version++
	m.saves++
	return nil
}

func (m *memGuilds) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// put escribe el agregado directo, sin pasar por CAS.
func (m *memGuilds) put(t *testing.T, g *domain.Guild) {
	t.Helper()
	raw, err := json.Marshal(g)
	require.NoError(t, err)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[g.ID] = raw
	m.versions[g.ID]++
}

func (m *memGuilds) get(t *testing.T) *domain.Guild {
	t.Helper()
	g, err := m.Load(context.Background(), guildID)
	require.NoError(t, err)
	return g
}

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]domain.Room
	// createErr hace fallar todos los Create.
	createErr error
}

func newMemRooms() *memRooms { return &memRooms{rooms: map[string]domain.Room{}} }

func (m *memRooms) Find(_ context.Context, id string) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	r.Events = append([]domain.RoomEvent(nil), r.Events...)
	return &r, nil
}

func (m *memRooms) Create(_ context.Context, r *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.rooms[r.ID]; ok {
		return storage.ErrConflict
	}
	m.rooms[r.ID] = *r
	return nil
}

func (m *memRooms) Save(_ context.Context, r *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = *r
	return nil
}

func (m *memRooms) kinds(id string) []domain.RoomEventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RoomEventKind
	for _, ev := range m.rooms[id].Events {
		out = append(out, ev.Kind)
	}
	return out
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	// createErr hace fallar todos los Create.
	createErr error
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]domain.Session{}} }

func (m *memSessions) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memSessions) FindActive(_ context.Context, gid, uid string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Active && s.GuildID == gid && s.UserID == uid {
			s.Rooms = append([]string(nil), s.Rooms...)
			return &s, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memSessions) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return storage.ErrNotFound
	}
	m.sessions[s.ID] = *s
	return nil
}

// notes registra las notificaciones enviadas.
type notes struct {
	mu  sync.Mutex
	got []service.Notification
	err error
}

func (n *notes) Notify(_ context.Context, msg service.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
	return n.err
}

func (n *notes) events() []domain.QueueEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.QueueEvent, 0, len(n.got))
	for _, m := range n.got {
		out = append(out, m.Event)
	}
	return out
}

func (n *notes) last() service.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.got) == 0 {
		return service.Notification{}
	}
	return n.got[len(n.got)-1]
}

type fixture struct {
	guilds   *memGuilds
	rooms    *memRooms
	sessions *memSessions
	notes    *notes
	clock    *clock.FakeClock
	ids      int
}

func newFixture() *fixture {
	return &fixture{
		guilds:   newMemGuilds(),
		rooms:    newMemRooms(),
		sessions: newMemSessions(),
		notes:    &notes{},
		clock:    clock.Fake(t0),
	}
}

func (f *fixture) opts() []service.Option {
	return []service.Option{
		service.WithClock(f.clock),
		service.WithIDGenerator(func() string {
			f.ids++
			return "id-" + strconv.Itoa(f.ids)
		}),
	}
}

func (f *fixture) queues() *service.QueueManager {
	return service.NewQueueManager(f.guilds, f.sessions, f.notes, f.opts()...)
}

// seedQueue deja un guild con una cola "Office Hours" en el canal vq.
func (f *fixture) seedQueue(t *testing.T, timeoutMs int64, entries ...domain.QueueEntry) *domain.Queue {
	t.Helper()
	q := &domain.Queue{
		ID:                "q1",
		Name:              "Office Hours",
		Entries:           entries,
		DisconnectTimeout: timeoutMs,
		OpenedAt:          t0.Add(-10 * time.Minute),
	}
	if q.Entries == nil {
		q.Entries = []domain.QueueEntry{}
	}
	g := domain.NewGuild(guildID)
	g.Queues = []*domain.Queue{q}
	g.VoiceChannels = []*domain.VoiceChannel{{ChannelID: "vq", QueueID: "q1", Supervisors: []string{"r-tutor"}}}
	f.guilds.put(t, g)
	return q.Clone()
}

func (f *fixture) queue(t *testing.T) *domain.Queue {
	t.Helper()
	q := f.guilds.get(t).QueueByID("q1")
	require.NotNil(t, q)
	return q
}

func entryIDs(es []domain.QueueEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.UserID)
	}
	return out
}
