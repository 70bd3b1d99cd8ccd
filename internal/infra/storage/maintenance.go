package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer es lo mínimo de pgxpool.Pool (o pgx.Conn) que usa el janitor.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CloseStaleSessions cierra sesiones que siguen activas hace más de maxAge.
// El fin queda marcado como incierto (end_certain = false).
func CloseStaleSessions(ctx context.Context, db Execer, maxAge time.Duration) (int64, error) {
	tag, err := db.Exec(ctx, `
UPDATE sessions
   SET active = FALSE, ended_at = now(), end_certain = FALSE
 WHERE active
   AND started_at < now() - make_interval(secs => $1)
`, maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("close stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeInactiveRooms borra logs de salas cerradas más viejos que retention.
func PurgeInactiveRooms(ctx context.Context, db Execer, retention time.Duration) (int64, error) {
	tag, err := db.Exec(ctx, `
DELETE FROM rooms
 WHERE active = FALSE
   AND updated_at < now() - make_interval(secs => $1)
`, retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge rooms: %w", err)
	}
	return tag.RowsAffected(), nil
}
