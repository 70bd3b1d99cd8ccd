package discord

import (
	"errors"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// describeError traduce errores de dominio a un texto para el usuario.
// Todo lo que no es de dominio se reporta genérico; el detalle va al log.
func describeError(err error) string {
	var de *domain.Error
	if !errors.As(err, &de) {
		return "⚠️ Ocurrió un error inesperado. Inténtalo de nuevo en un momento."
	}
	switch de.Kind {
	case domain.KindNotInQueue:
		return "ℹ️ No estás en ninguna cola."
	case domain.KindAlreadyInQueue:
		return "ℹ️ Ya estás en una cola. Sal de ella antes de unirte a otra."
	case domain.KindQueueLocked:
		return "🔒 La cola está cerrada en este momento."
	case domain.KindQueueIsEmpty:
		return "ℹ️ La cola está vacía."
	case domain.KindCouldNotFindQueue:
		return "⚠️ No encontré esa cola."
	case domain.KindQueueAlreadyExists:
		return "⚠️ Ya existe una cola con ese nombre."
	case domain.KindNotInVoiceChannel:
		return "🎧 Tienes que estar en un canal de voz."
	case domain.KindChannelNotTemporary:
		return "⚠️ Ese canal no es una sala temporal."
	case domain.KindChannelCouldNotBeCreated:
		return "⚠️ No pude crear la sala. Inténtalo de nuevo."
	case domain.KindRoomAlreadyLocked:
		return "ℹ️ La sala ya está cerrada."
	case domain.KindCouldNotKickUser:
		return "⚠️ No pude sacar a " + mentionOf(de.Subject) + " de la sala."
	case domain.KindCouldNotPermitUser:
		return "⚠️ No pude dar acceso a " + mentionOf(de.Subject) + "."
	case domain.KindCanNotTransferToYourself:
		return "ℹ️ Ya eres el dueño de la sala."
	case domain.KindUnauthorized:
		if de.Reason != "" {
			return "🔒 No autorizado: " + de.Reason
		}
		return "🔒 No autorizado."
	case domain.KindUserHasActiveSession:
		return "ℹ️ Ya tienes una sesión activa."
	case domain.KindUserHasNoActiveSession:
		return "ℹ️ No tienes una sesión activa. Usa `/session start`."
	case domain.KindSessionHasNoQueue:
		return "⚠️ Tu sesión no está asociada a ninguna cola."
	case domain.KindUserNotInGuild:
		return "⚠️ " + mentionOf(de.Subject) + " no es miembro del servidor."
	case domain.KindChannelAlreadyInfoChannel:
		return "ℹ️ Ese canal ya recibe eventos de la cola."
	case domain.KindChannelNotInfoChannel:
		return "ℹ️ Ese canal no recibe eventos de la cola."
	case domain.KindInvalidEvent:
		return "⚠️ Evento inválido: " + de.Reason
	case domain.KindChannelAlreadyInUse:
		return "⚠️ Ese canal ya está en uso por otra cola o sala."
	}
	return "⚠️ " + de.Error()
}

func mentionOf(id string) string {
	if id == "" {
		return "ese usuario"
	}
	return "<@" + id + ">"
}
