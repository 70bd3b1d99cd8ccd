package domain

import (
	"errors"
	"fmt"
)

// Kind identifica una condición de dominio recuperable.
type Kind int

const (
	KindUnknown Kind = iota

	// cola
	KindNotInQueue
	KindAlreadyInQueue
	KindQueueLocked
	KindQueueIsEmpty
	KindCouldNotFindQueue
	KindQueueAlreadyExists

	// salas
	KindNotInVoiceChannel
	KindChannelNotTemporary
	KindChannelCouldNotBeCreated
	KindRoomAlreadyLocked
	KindCouldNotKickUser
	KindCouldNotPermitUser
	KindCanNotTransferToYourself
	KindUnauthorized

	// sesiones
	KindUserHasActiveSession
	KindUserHasNoActiveSession
	KindSessionHasNoQueue

	// configuración
	KindUserNotInGuild
	KindChannelAlreadyInfoChannel
	KindChannelNotInfoChannel
	KindInvalidEvent
	KindChannelAlreadyInUse
)

var kindNames = map[Kind]string{
	KindNotInQueue:                "not in queue",
	KindAlreadyInQueue:            "already in queue",
	KindQueueLocked:               "queue locked",
	KindQueueIsEmpty:              "queue is empty",
	KindCouldNotFindQueue:         "could not find queue",
	KindQueueAlreadyExists:        "queue already exists",
	KindNotInVoiceChannel:         "not in voice channel",
	KindChannelNotTemporary:       "channel not temporary",
	KindChannelCouldNotBeCreated:  "channel could not be created",
	KindRoomAlreadyLocked:         "room already locked",
	KindCouldNotKickUser:          "could not kick user",
	KindCouldNotPermitUser:        "could not permit user",
	KindCanNotTransferToYourself:  "can not transfer to yourself",
	KindUnauthorized:              "unauthorized",
	KindUserHasActiveSession:      "user has active session",
	KindUserHasNoActiveSession:    "user has no active session",
	KindSessionHasNoQueue:         "session has no queue",
	KindUserNotInGuild:            "user not in guild",
	KindChannelAlreadyInfoChannel: "channel already info channel",
	KindChannelNotInfoChannel:     "channel not info channel",
	KindInvalidEvent:              "invalid event",
	KindChannelAlreadyInUse:       "channel already in use",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error es el único tipo de error de dominio. Subject identifica la entidad
// afectada (usuario, canal, cola); Reason sólo aplica a Unauthorized e
// InvalidEvent; Err guarda la causa de plataforma cuando existe.
type Error struct {
	Kind    Kind
	Subject string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Kind, así errors.Is(err, ErrNotInQueue) funciona sin
// importar el Subject.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels para errors.Is.
var (
	ErrNotInQueue                = &Error{Kind: KindNotInQueue}
	ErrAlreadyInQueue            = &Error{Kind: KindAlreadyInQueue}
	ErrQueueLocked               = &Error{Kind: KindQueueLocked}
	ErrQueueIsEmpty              = &Error{Kind: KindQueueIsEmpty}
	ErrCouldNotFindQueue         = &Error{Kind: KindCouldNotFindQueue}
	ErrQueueAlreadyExists        = &Error{Kind: KindQueueAlreadyExists}
	ErrNotInVoiceChannel         = &Error{Kind: KindNotInVoiceChannel}
	ErrChannelNotTemporary       = &Error{Kind: KindChannelNotTemporary}
	ErrChannelCouldNotBeCreated  = &Error{Kind: KindChannelCouldNotBeCreated}
	ErrRoomAlreadyLocked         = &Error{Kind: KindRoomAlreadyLocked}
	ErrCouldNotKickUser          = &Error{Kind: KindCouldNotKickUser}
	ErrCouldNotPermitUser        = &Error{Kind: KindCouldNotPermitUser}
	ErrCanNotTransferToYourself  = &Error{Kind: KindCanNotTransferToYourself}
	ErrUnauthorized              = &Error{Kind: KindUnauthorized}
	ErrUserHasActiveSession      = &Error{Kind: KindUserHasActiveSession}
	ErrUserHasNoActiveSession    = &Error{Kind: KindUserHasNoActiveSession}
	ErrSessionHasNoQueue         = &Error{Kind: KindSessionHasNoQueue}
	ErrUserNotInGuild            = &Error{Kind: KindUserNotInGuild}
	ErrChannelAlreadyInfoChannel = &Error{Kind: KindChannelAlreadyInfoChannel}
	ErrChannelNotInfoChannel     = &Error{Kind: KindChannelNotInfoChannel}
	ErrInvalidEvent              = &Error{Kind: KindInvalidEvent}
	ErrChannelAlreadyInUse       = &Error{Kind: KindChannelAlreadyInUse}
)

// NewError arma un error de dominio con sujeto.
func NewError(kind Kind, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}

// Unauthorized arma un error de autorización con motivo.
func Unauthorized(reason string) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason}
}

// KindOf devuelve el Kind de un error de dominio, o KindUnknown si err no
// es de dominio (p.ej. falla de persistencia).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsDomain reporta si err es una condición de dominio recuperable.
func IsDomain(err error) bool { return KindOf(err) != KindUnknown }

func wrapf(kind Kind, subject string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Reason: fmt.Sprintf(format, args...), Err: cause}
}
