package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rickgao/polymarket-data/internal/config"
)

func TestLocalTryLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, ok, err := l.TryLock(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}

	if _, ok, _ := l.TryLock(ctx, "a"); ok {
		t.Error("second TryLock on held key succeeded")
	}
	if r, ok, _ := l.TryLock(ctx, "b"); !ok {
		t.Error("TryLock on distinct key failed")
	} else {
		r()
	}

	release()
	release() // second call is a no-op

	r, ok, _ := l.TryLock(ctx, "a")
	if !ok {
		t.Fatal("TryLock after release failed")
	}
	r()
}

func TestLocalTryLockCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok, err := NewLocal().TryLock(ctx, "a"); err == nil || ok {
		t.Errorf("TryLock on canceled ctx = %v, %v", ok, err)
	}
}

func TestLocalSingleHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	var holders, maxHolders int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok, _ := l.TryLock(ctx, "k")
			if !ok {
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				m := atomic.LoadInt32(&maxHolders)
				if n <= m || atomic.CompareAndSwapInt32(&maxHolders, m, n) {
					break
				}
			}
			atomic.AddInt32(&holders, -1)
			release()
		}()
	}
	wg.Wait()

	if maxHolders > 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxHolders)
	}
}

func TestNoop(t *testing.T) {
	for i := 0; i < 2; i++ {
		release, ok, err := Noop{}.TryLock(context.Background(), "a")
		if !ok || err != nil {
			t.Fatalf("Noop.TryLock = %v, %v", ok, err)
		}
		release()
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{backend: config.LockLocal, want: "*lock.Local"},
		{backend: "", want: "*lock.Local"},
		{backend: config.LockNone, want: "lock.Noop"},
		{backend: "zookeeper", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			l, err := New(context.Background(), config.LockConfig{Backend: tt.backend}, config.RedisConfig{}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := typeName(l); got != tt.want {
				t.Errorf("New(%q) = %s, want %s", tt.backend, got, tt.want)
			}
		})
	}
}

func typeName(l Locker) string {
	switch l.(type) {
	case *Local:
		return "*lock.Local"
	case Noop:
		return "lock.Noop"
	case *Redis:
		return "*lock.Redis"
	}
	return "unknown"
}

func TestSeriesKey(t *testing.T) {
	if got := SeriesKey("tok", "1h"); got != "history:tok:1h" {
		t.Errorf("SeriesKey = %q", got)
	}
}
