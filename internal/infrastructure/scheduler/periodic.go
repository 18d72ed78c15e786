// Package scheduler ejecuta tareas periódicas (barridos) con una sola ejecución en vuelo por tarea.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/infrastructure/redislock"
)

// RunFunc un ciclo de la tarea. El error se registra; la tarea sigue programada.
type RunFunc func(ctx context.Context) error

// lockTTLFactor vida del lock distribuido en intervalos. Se renueva cada tercio
// mientras el ciclo sigue en curso.
const lockTTLFactor = 3

// Locker exclusión entre procesos. *redislock.Locker la implementa.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (*redislock.Lock, error)
}

// Observer recibe la duración y el resultado de cada ciclo (métricas).
type Observer interface {
	ObserveRun(task string, d time.Duration, err error)
	ObserveSkipped(task string)
}

// PeriodicTask ejecuta fn cada interval. Si un ciclo sigue en curso cuando vence el siguiente
// tick, ese tick se descarta.
type PeriodicTask struct {
	name     string
	interval time.Duration
	fn       RunFunc
	locker   Locker
	observer Observer
	log      zerolog.Logger

	running atomic.Bool
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configura la tarea.
type Option func(*PeriodicTask)

// WithLocker activa el lock distribuido (TTL = lockTTLFactor × interval, renovado durante el ciclo).
func WithLocker(l Locker) Option { return func(t *PeriodicTask) { t.locker = l } }

// WithObserver registra duración y resultado de cada ciclo.
func WithObserver(o Observer) Option { return func(t *PeriodicTask) { t.observer = o } }

// NewPeriodicTask construye la tarea sin arrancarla.
func NewPeriodicTask(name string, interval time.Duration, fn RunFunc, log zerolog.Logger, opts ...Option) *PeriodicTask {
	t := &PeriodicTask{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.With().Str("component", "scheduler").Str("task", name).Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start lanza el bucle en segundo plano. El primer ciclo se ejecuta tras el primer tick.
func (t *PeriodicTask) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return fmt.Errorf("scheduler %s: intervalo inválido %s", t.name, t.interval)
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler %s: ya iniciado", t.name)
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.loop(ctx)
	t.log.Info().Dur("interval", t.interval).Msg("tarea periódica iniciada")
	return nil
}

// Stop cancela el bucle y espera al ciclo en curso o a que venza ctx.
func (t *PeriodicTask) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.log.Info().Msg("tarea periódica detenida")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *PeriodicTask) loop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				t.RunOnce(ctx)
			}()
		}
	}
}

// RunOnce ejecuta un ciclo ahora. Devuelve false si se descartó (otro ciclo en curso
// o lock tomado por otro proceso).
func (t *PeriodicTask) RunOnce(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		t.log.Debug().Msg("ciclo anterior aún en curso, se descarta el tick")
		t.skipped()
		return false
	}
	defer t.running.Store(false)

	runCtx := ctx
	if t.locker != nil {
		ttl := lockTTLFactor * t.interval
		lock, err := t.locker.TryAcquire(ctx, t.name, ttl)
		if err != nil {
			t.log.Error().Err(err).Msg("no se pudo consultar el lock distribuido")
			t.skipped()
			return false
		}
		if lock == nil {
			t.log.Debug().Msg("otra instancia ejecuta el barrido")
			t.skipped()
			return false
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrNotHeld) {
				t.log.Warn().Err(err).Msg("no se pudo liberar el lock")
			}
		}()
		var stop func()
		runCtx, stop = t.keepAlive(ctx, lock, ttl)
		defer stop()
	}

	start := time.Now()
	err := t.safeRun(runCtx)
	d := time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.log.Error().Err(err).Dur("duration", d).Msg("ciclo fallido")
	}
	if t.observer != nil {
		t.observer.ObserveRun(t.name, d, err)
	}
	return true
}

// keepAlive renueva el lock cada ttl/3 hasta que se llame a stop. Si el lock se pierde,
// cancela el contexto devuelto para que el ciclo no se solape con otra instancia.
func (t *PeriodicTask) keepAlive(ctx context.Context, lock *redislock.Lock, ttl time.Duration) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				err := lock.Extend(runCtx, ttl)
				switch {
				case err == nil || runCtx.Err() != nil:
				case errors.Is(err, redislock.ErrNotHeld):
					t.log.Warn().Msg("lock distribuido perdido, se interrumpe el ciclo")
					cancel()
					return
				default:
					t.log.Warn().Err(err).Msg("no se pudo renovar el lock distribuido")
				}
			}
		}
	}()
	return runCtx, func() {
		cancel()
		<-done
	}
}

func (t *PeriodicTask) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic en %s: %v", t.name, r)
		}
	}()
	return t.fn(ctx)
}

func (t *PeriodicTask) skipped() {
	if t.observer != nil {
		t.observer.ObserveSkipped(t.name)
	}
}
