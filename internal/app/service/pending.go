package service

import (
	"sync"
	"time"

	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
)

type pendingKey struct {
	queueID string
	userID  string
}

// pendingRemoval es un retiro diferido armado para (cola, usuario).
type pendingRemoval struct {
	timer   *clock.Timer
	armedAt time.Time
}

// pendingRemovals es la tabla (queueID, userID) → retiro pendiente.
// Un timer que dispara sólo actúa si su entrada sigue siendo la armada
// (take compara puntero bajo el mutex), así un clear o un re-armado
// concurrente gana siempre.
type pendingRemovals struct {
	mu      sync.Mutex
	entries map[pendingKey]*pendingRemoval
}

func newPendingRemovals() *pendingRemovals {
	return &pendingRemovals{entries: map[pendingKey]*pendingRemoval{}}
}

// arm agenda fire tras d. Si ya había uno armado lo cancela y la ventana
// arranca de nuevo. fire recibe la entrada armada y debe llamar take antes
// de actuar.
func (p *pendingRemovals) arm(key pendingKey, c clock.Clock, d time.Duration, fire func(pr *pendingRemoval)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.entries[key]; ok {
		prev.timer.Stop()
	}
	pr := &pendingRemoval{armedAt: c.Now()}
	p.entries[key] = pr
	pr.timer = c.AfterFunc(d, func() { fire(pr) })
}

func (p *pendingRemovals) take(key pendingKey, pr *pendingRemoval) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entries[key] != pr {
		return false
	}
	delete(p.entries, key)
	return true
}

// clear desarma; false si no había nada armado.
func (p *pendingRemovals) clear(key pendingKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.entries[key]
	if !ok {
		return false
	}
	pr.timer.Stop()
	delete(p.entries, key)
	return true
}

func (p *pendingRemovals) armed(key pendingKey) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return pr.armedAt, true
}
