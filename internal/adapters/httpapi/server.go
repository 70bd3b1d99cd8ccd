// Package httpapi expone endpoints de operación: health y una vista de sólo
// lectura de las colas.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// Pinger es la dependencia de health (el *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueLister lo implementa service.QueueManager.
type QueueLister interface {
	ListQueues(ctx context.Context, guildID string) ([]*domain.Queue, error)
	IsPendingRemoval(queueID, userID string) bool
}

type Server struct {
	db     Pinger
	queues QueueLister
	mux    *http.ServeMux
	log    *slog.Logger
}

func New(db Pinger, queues QueueLister, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{db: db, queues: queues, mux: http.NewServeMux(), log: log.With("component", "http")}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /guilds/{guildID}/queues", s.handleQueues)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Warn("health: db ping failed", "err", err)
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type entryView struct {
	UserID         string    `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
	PendingRemoval bool      `json:"pending_removal"`
}

type queueView struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Locked              bool        `json:"locked"`
	DisconnectTimeoutMs int64       `json:"disconnect_timeout_ms"`
	Entries             []entryView `json:"entries"`
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	qs, err := s.queues.ListQueues(r.Context(), guildID)
	if err != nil {
		s.log.Error("list queues", "guild", guildID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]queueView, 0, len(qs))
	for _, q := range qs {
		v := queueView{ID: q.ID, Name: q.Name, Locked: q.Locked, DisconnectTimeoutMs: q.DisconnectTimeout, Entries: []entryView{}}
		for _, e := range q.SortedEntries(len(q.Entries)) {
			v.Entries = append(v.Entries, entryView{UserID: e.UserID, JoinedAt: e.JoinedAt, PendingRemoval: s.queues.IsPendingRemoval(q.ID, e.UserID)})
		}
		out = append(out, v)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Start bloquea hasta que ctx se cancela.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	s.log.Info("http listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
