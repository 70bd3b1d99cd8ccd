package service

import (
	"context"
	"errors"
	"time"

	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

// appendRoomEvents aplica fn al registro de auditoría de la sala y lo guarda.
// Si no existe y create es true lo crea; si otro handler lo creó en el medio
// (ErrConflict) se recarga y se guarda encima. Con create false y sin
// registro devuelve (nil, nil).
func appendRoomEvents(ctx context.Context, repo RoomRepo, guildID, roomID string, now time.Time, create bool, fn func(r *domain.Room)) (*domain.Room, error) {
	room, err := repo.Find(ctx, roomID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		if !create {
			return nil, nil
		}
		room = domain.NewRoom(guildID, roomID, now)
		fn(room)
		err = repo.Create(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		if room, err = repo.Find(ctx, roomID); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	fn(room)
	if err := repo.Save(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}
