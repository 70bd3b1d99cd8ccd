package service

// Deps son los colaboradores externos del engine.
type Deps struct {
	Guilds   GuildRepo
	Rooms    RoomRepo
	Sessions SessionRepo
	Gateway  Gateway
	Notifier Notifier
}

// Engine agrupa los servicios que comparten un mismo estado en memoria
// (retiros pendientes). Se crea uno por proceso y se pasa a los handlers.
type Engine struct {
	Queues   *QueueManager
	Rooms    *RoomManager
	Presence *PresenceRouter
	Pairing  *PairingService
}

func NewEngine(d Deps, opts ...Option) *Engine {
	queues := NewQueueManager(d.Guilds, d.Sessions, d.Notifier, opts...)
	rooms := NewRoomManager(d.Guilds, d.Rooms, d.Gateway, opts...)
	return &Engine{
		Queues:   queues,
		Rooms:    rooms,
		Presence: NewPresenceRouter(queues, d.Guilds, d.Rooms, d.Gateway, d.Notifier, opts...),
		Pairing:  NewPairingService(queues, rooms, d.Gateway, opts...),
	}
}
