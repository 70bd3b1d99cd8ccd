package domain

import (
	"slices"
	"time"
)

type SessionRole string

const (
	RoleCoach       SessionRole = "coach"
	RoleParticipant SessionRole = "participant"
	RoleSupervisor  SessionRole = "supervisor"
)

// Session es la ventana de actividad de un tutor (o participante).
type Session struct {
	ID         string
	UserID     string
	GuildID    string
	QueueID    string
	Role       SessionRole
	Active     bool
	Start      time.Time
	End        *time.Time
	EndCertain bool
	Rooms      []string
}

// AddRoom registra una sala visitada durante la sesión.
func (s *Session) AddRoom(roomID string) {
	if !slices.Contains(s.Rooms, roomID) {
		s.Rooms = append(s.Rooms, roomID)
	}
}

// Close cierra la sesión; certain indica si el fin fue explícito.
func (s *Session) Close(at time.Time, certain bool) {
	at = at.UTC()
	s.Active = false
	s.End = &at
	s.EndCertain = certain
}

// Duration hasta End, o hasta now si sigue activa.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.End != nil {
		return s.End.Sub(s.Start)
	}
	return now.Sub(s.Start)
}
