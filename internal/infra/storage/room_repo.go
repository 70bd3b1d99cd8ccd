package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// RoomRepo guarda el log de auditoría de cada sala (events en JSONB).
type RoomRepo struct{ db *sql.DB }

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

func (r *RoomRepo) Find(ctx context.Context, roomID string) (*domain.Room, error) {
	var (
		room   domain.Room
		events []byte
	)
	err := r.db.QueryRowContext(ctx, `
SELECT room_id, guild_id, active, tampered, events, created_at
  FROM rooms
 WHERE room_id = $1
`, roomID).Scan(&room.ID, &room.GuildID, &room.Active, &room.Tampered, &events, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room %s: %w", roomID, err)
	}
	if err := json.Unmarshal(events, &room.Events); err != nil {
		return nil, fmt.Errorf("decode room %s events: %w", roomID, err)
	}
	return &room, nil
}

// Create inserta; si la sala ya existe devuelve ErrConflict.
func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	events, err := encodeEvents(room.Events)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO rooms (room_id, guild_id, active, tampered, events, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (room_id) DO NOTHING
`, room.ID, room.GuildID, room.Active, room.Tampered, events, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("create room %s: %w", room.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *RoomRepo) Save(ctx context.Context, room *domain.Room) error {
	events, err := encodeEvents(room.Events)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO rooms (room_id, guild_id, active, tampered, events, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (room_id) DO UPDATE SET
  active     = EXCLUDED.active,
  tampered   = EXCLUDED.tampered,
  events     = EXCLUDED.events,
  updated_at = now()
`, room.ID, room.GuildID, room.Active, room.Tampered, events, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

func encodeEvents(evs []domain.RoomEvent) ([]byte, error) {
	if evs == nil {
		evs = []domain.RoomEvent{}
	}
	b, err := json.Marshal(evs)
	if err != nil {
		return nil, fmt.Errorf("encode room events: %w", err)
	}
	return b, nil
}
