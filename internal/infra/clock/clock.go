// Package clock abstrae el tiempo para poder testear los timers de la cola.
// Producción usa Real(); los tests usan Fake() y avanzan el reloj a mano.
package clock

import "time"

// Clock es lo mínimo que necesitan los servicios.
type Clock interface {
	Now() time.Time
	// AfterFunc llama f en su propia goroutine (real) o dentro de
	// Advance (fake) cuando pasa d.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer es un callback agendado.
type Timer struct {
	stopFunc func() bool
}

// Stop evita que el timer dispare. false si ya disparó o ya se paró.
func (t *Timer) Stop() bool { return t.stopFunc() }

type realClock struct{}

// Real devuelve el reloj del sistema.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
