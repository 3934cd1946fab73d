// Package lock provides the per-series sync lock.
//
// At most one history sync per (token, interval) runs at a time. In a single
// process the Local backend suffices; multiple syncer instances sharing one
// store coordinate through Redis.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/polymarket-data/internal/config"
)

// Locker hands out non-blocking, keyed locks.
type Locker interface {
	// TryLock acquires key without waiting. ok is false when another holder
	// has it. release must be called exactly once when ok is true.
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)

	Close() error
}

// SeriesKey is the lock key for one (token, interval) series.
func SeriesKey(tokenID, interval string) string {
	return "history:" + tokenID + ":" + interval
}

// CatalogKey guards catalog walks.
const CatalogKey = "catalog"

// New builds the Locker selected by cfg.Backend.
func New(ctx context.Context, cfg config.LockConfig, redisCfg config.RedisConfig, logger *slog.Logger) (Locker, error) {
	switch cfg.Backend {
	case config.LockLocal, "":
		return NewLocal(), nil
	case config.LockNone:
		return Noop{}, nil
	case config.LockRedis:
		return DialRedis(ctx, redisCfg, cfg.TTL, logger)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Locker = (*Local)(nil)

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

func (l *Local) Close() error { return nil }

// Noop grants every lock. Use it when an external scheduler already
// serializes syncs.
type Noop struct{}

var _ Locker = Noop{}

func (Noop) TryLock(ctx context.Context, key string) (func(), bool, error) {
	return func() {}, true, nil
}

func (Noop) Close() error { return nil }
