package domain

import "strings"

// QueueEvent es un tipo de evento al que un canal de info puede suscribirse.
type QueueEvent string

const (
	EventJoin         QueueEvent = "join"
	EventLeave        QueueEvent = "leave"
	EventStay         QueueEvent = "stay"
	EventConfirmLeave QueueEvent = "confirm_leave"
	EventLocked       QueueEvent = "locked"
	EventMatch        QueueEvent = "match"
	EventError        QueueEvent = "error"
)

// AllQueueEvents son los eventos que se pueden suscribir (error no).
var AllQueueEvents = []QueueEvent{EventJoin, EventLeave, EventStay, EventConfirmLeave, EventLocked, EventMatch}

// ParseQueueEvent valida un nombre de evento.
func ParseQueueEvent(s string) (QueueEvent, error) {
	v := QueueEvent(strings.ToLower(strings.TrimSpace(s)))
	for _, ev := range AllQueueEvents {
		if ev == v {
			return v, nil
		}
	}
	return "", wrapf(KindInvalidEvent, s, nil, "unknown event %q", s)
}

// ParseQueueEvents parsea una lista separada por comas o espacios.
// Vacío significa todos los eventos.
func ParseQueueEvents(raw string) ([]QueueEvent, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		out := make([]QueueEvent, len(AllQueueEvents))
		copy(out, AllQueueEvents)
		return out, nil
	}
	out := make([]QueueEvent, 0, len(fields))
	seen := map[QueueEvent]bool{}
	for _, f := range fields {
		ev, err := ParseQueueEvent(f)
		if err != nil {
			return nil, err
		}
		if !seen[ev] {
			seen[ev] = true
			out = append(out, ev)
		}
	}
	return out, nil
}
