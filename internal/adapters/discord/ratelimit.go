package discord

import (
	"sync"
	"time"

	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
)

// userLimiter: un click por usuario por ventana.
type userLimiter struct {
	mu    sync.Mutex
	next  map[string]time.Time
	win   time.Duration
	clock clock.Clock
}

func newUserLimiter(window time.Duration, c clock.Clock) *userLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &userLimiter{next: map[string]time.Time{}, win: window, clock: c}
}

func (l *userLimiter) Allow(userID string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.next[userID]; ok && now.Before(until) {
		return false
	}
	l.next[userID] = now.Add(l.win)
	return true
}
