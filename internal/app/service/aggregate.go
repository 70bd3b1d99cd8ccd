package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

// maxSaveAttempts acota los reintentos de updateGuild ante ErrConflict.
const maxSaveAttempts = 3

// errSkipSave: el mutador no cambió nada, no hace falta guardar.
var errSkipSave = errors.New("skip save")

// updateGuild hace load → fn → save con CAS. Si otro handler guardó en el
// medio recarga y vuelve a aplicar fn, así que fn tiene que depender sólo
// del agregado que recibe.
func updateGuild(ctx context.Context, repo GuildRepo, guildID string, fn func(g *domain.Guild) error) (*domain.Guild, error) {
	for attempt := 1; ; attempt++ {
		g, err := repo.Load(ctx, guildID)
		if err != nil {
			return nil, err
		}
		if err := fn(g); err != nil {
			if errors.Is(err, errSkipSave) {
				return g, nil
			}
			return nil, err
		}
		err = repo.Save(ctx, g)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}
	}
}

// Option configura los servicios del engine.
type Option func(*options)

type options struct {
	clock  clock.Clock
	logger *slog.Logger
	newID  func() string
}

func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithIDGenerator reemplaza uuid.NewString (tests).
func WithIDGenerator(f func() string) Option { return func(o *options) { o.newID = f } }

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// keyedMutex serializa por clave (guild) sin un lock global.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*refLock{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
