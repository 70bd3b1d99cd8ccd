package domain

import "time"

// RoomEventKind clasifica las entradas del log de auditoría de una sala.
type RoomEventKind string

const (
	RoomCreated       RoomEventKind = "create"
	RoomUserJoin      RoomEventKind = "user_join"
	RoomUserLeave     RoomEventKind = "user_leave"
	RoomMoveMember    RoomEventKind = "move_member"
	RoomKickMember    RoomEventKind = "kick_member"
	RoomLock          RoomEventKind = "lock"
	RoomUnlock        RoomEventKind = "unlock"
	RoomHide          RoomEventKind = "hide"
	RoomShow          RoomEventKind = "show"
	RoomPermitMember  RoomEventKind = "permit_member"
	RoomRevokeMember  RoomEventKind = "revoke_member"
	RoomTransferOwner RoomEventKind = "transfer_ownership"
	RoomDeleted       RoomEventKind = "delete"
)

// RoomEvent es una entrada append-only del log.
type RoomEvent struct {
	Emitter string        `json:"emitter"`
	Kind    RoomEventKind `json:"kind"`
	Target  string        `json:"target,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`
}

// Room es un canal de voz auditado; su ID es el id del canal.
type Room struct {
	ID        string
	GuildID   string
	Active    bool
	Tampered  bool
	Events    []RoomEvent
	CreatedAt time.Time
}

// NewRoom crea el registro de auditoría de un canal.
func NewRoom(guildID, channelID string, at time.Time) *Room {
	return &Room{ID: channelID, GuildID: guildID, Active: true, CreatedAt: at.UTC()}
}

// Append agrega un evento al log.
func (r *Room) Append(ev RoomEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	r.Events = append(r.Events, ev)
}
