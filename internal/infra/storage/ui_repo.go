package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// QueuePanel es el mensaje con el estado de una cola publicado en un canal.
type QueuePanel struct {
	GuildID   string
	QueueID   string
	ChannelID string
	MessageID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PanelRepo struct{ db *sql.DB }

func NewPanelRepo(db *sql.DB) *PanelRepo { return &PanelRepo{db: db} }

func (r *PanelRepo) Get(ctx context.Context, guildID, queueID string) (QueuePanel, error) {
	var p QueuePanel
	err := r.db.QueryRowContext(ctx, `
SELECT guild_id, queue_id, channel_id, message_id, created_at, updated_at
  FROM queue_panels
 WHERE guild_id = $1 AND queue_id = $2
`, guildID, queueID).Scan(&p.GuildID, &p.QueueID, &p.ChannelID, &p.MessageID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get panel %s/%s: %w", guildID, queueID, err)
	}
	return p, nil
}

// Upsert reemplaza el panel de la cola (sólo hay uno por cola).
func (r *PanelRepo) Upsert(ctx context.Context, p QueuePanel) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO queue_panels (guild_id, queue_id, channel_id, message_id)
VALUES ($1,$2,$3,$4)
ON CONFLICT (guild_id, queue_id) DO UPDATE SET
  channel_id = EXCLUDED.channel_id,
  message_id = EXCLUDED.message_id,
  updated_at = now()
`, p.GuildID, p.QueueID, p.ChannelID, p.MessageID)
	if err != nil {
		return fmt.Errorf("upsert panel %s/%s: %w", p.GuildID, p.QueueID, err)
	}
	return nil
}

func (r *PanelRepo) Delete(ctx context.Context, guildID, queueID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM queue_panels WHERE guild_id = $1 AND queue_id = $2`, guildID, queueID)
	return err
}
