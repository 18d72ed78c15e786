// Package redislock lock distribuido mínimo (SET NX PX + liberación condicionada al token)
// para que un solo proceso ejecute cada barrido cuando hay varias réplicas.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld el lock ya no pertenece a este proceso (expiró o lo tomó otro).
var ErrNotHeld = errors.New("redislock: lock no retenido")

// Solo borra si el valor sigue siendo nuestro token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Renueva la expiración solo si el valor sigue siendo nuestro token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Locker emite locks con prefijo común.
type Locker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// New construye el locker sobre un cliente existente.
func New(client redis.UniversalClient, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "invoicing:lock:"
	}
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Lock retenido. Release es idempotente.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// TryAcquire intenta tomar el lock name durante ttl. Devuelve (nil, nil) si otro lo tiene.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := l.keyPrefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: adquirir %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release libera el lock si sigue siendo nuestro.
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Int64()
	if err != nil {
		return fmt.Errorf("redislock: liberar %s: %w", lk.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Extend renueva el lock por ttl desde ahora. ErrNotHeld si ya expiró o lo tomó otro.
func (lk *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, lk.client, []string{lk.key}, lk.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redislock: renovar %s: %w", lk.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
