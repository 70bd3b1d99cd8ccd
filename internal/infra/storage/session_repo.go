package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	pq "github.com/lib/pq"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `session_id, guild_id, user_id, queue_id, role, active, started_at, ended_at, end_certain, rooms`

// uniqueViolation es el SQLSTATE de un índice único violado.
const uniqueViolation = "23505"

// Create inserta la sesión. Si el usuario ya tiene una activa en el guild
// (sessions_active_uq) devuelve ErrConflict.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (`+sessionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, s.ID, s.GuildID, s.UserID, s.QueueID, string(s.Role), s.Active, s.Start, s.End, s.EndCertain, pq.Array(nonNil(s.Rooms)))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	return nil
}

// FindActive devuelve la sesión activa del usuario en el guild.
func (r *SessionRepo) FindActive(ctx context.Context, guildID, userID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
  FROM sessions
 WHERE guild_id = $1 AND user_id = $2 AND active
 LIMIT 1
`, guildID, userID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active session %s/%s: %w", guildID, userID, err)
	}
	return s, nil
}

func (r *SessionRepo) Save(ctx context.Context, s *domain.Session) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
   SET queue_id = $2, role = $3, active = $4, ended_at = $5, end_certain = $6, rooms = $7
 WHERE session_id = $1
`, s.ID, s.QueueID, string(s.Role), s.Active, s.End, s.EndCertain, pq.Array(nonNil(s.Rooms)))
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		s     domain.Session
		role  string
		end   sql.NullTime
		rooms pq.StringArray
	)
	if err := row.Scan(&s.ID, &s.GuildID, &s.UserID, &s.QueueID, &role, &s.Active, &s.Start, &end, &s.EndCertain, &rooms); err != nil {
		return nil, err
	}
	s.Role = domain.SessionRole(role)
	if end.Valid {
		t := end.Time
		s.End = &t
	}
	s.Rooms = []string(rooms)
	return &s, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
