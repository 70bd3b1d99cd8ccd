package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// GuildRepo persiste el agregado del guild como un documento JSONB.
// Save hace compare-and-swap sobre version: si alguien guardó en el medio
// devuelve ErrConflict y el caller recarga.
type GuildRepo struct{ db *sql.DB }

func NewGuildRepo(db *sql.DB) *GuildRepo { return &GuildRepo{db: db} }

// Load devuelve el agregado; si el guild no existe devuelve uno vacío con Version 0.
func (r *GuildRepo) Load(ctx context.Context, guildID string) (*domain.Guild, error) {
	var (
		version int64
		data    []byte
	)
	err := r.db.QueryRowContext(ctx, `
SELECT version, data
  FROM guilds
 WHERE guild_id = $1
`, guildID).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewGuild(guildID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guild %s: %w", guildID, err)
	}

	g := domain.NewGuild(guildID)
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("decode guild %s: %w", guildID, err)
	}
	g.ID = guildID
	g.Version = version
	return g, nil
}

func (r *GuildRepo) Save(ctx context.Context, g *domain.Guild) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode guild %s: %w", g.ID, err)
	}

	var res sql.Result
	if g.Version == 0 {
		res, err = r.db.ExecContext(ctx, `
INSERT INTO guilds (guild_id, version, data)
VALUES ($1, 1, $2)
ON CONFLICT (guild_id) DO NOTHING
`, g.ID, data)
	} else {
		res, err = r.db.ExecContext(ctx, `
UPDATE guilds
   SET data = $2, version = version + 1, updated_at = now()
 WHERE guild_id = $1 AND version = $3
`, g.ID, data, g.Version)
	}
	if err != nil {
		return fmt.Errorf("save guild %s: %w", g.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	g.Version++
	return nil
}
