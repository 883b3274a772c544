package syncflag

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

// NewMemory creates an empty flag store.
func NewMemory() *Memory {
	return &Memory{flags: make(map[string]Flag)}
}

func normalize(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

func (m *Memory) IsSynced(ctx context.Context, name string) (bool, error) {
	name, err := normalize(ctx, name)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[name].Synced, nil
}

func (m *Memory) MarkSynced(ctx context.Context, name string, at time.Time) error {
	name, err := normalize(ctx, name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[name] = Flag{Name: name, Synced: true, SyncedAt: at.UTC()}
	return nil
}

func (m *Memory) LastSyncedAt(ctx context.Context, name string) (time.Time, bool, error) {
	name, err := normalize(ctx, name)
	if err != nil {
		return time.Time{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	flag, ok := m.flags[name]
	if !ok || !flag.Synced {
		return time.Time{}, false, nil
	}
	return flag.SyncedAt, true, nil
}

func (m *Memory) Reset(ctx context.Context, name string) error {
	name, err := normalize(ctx, name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, name)
	return nil
}

var _ Store = (*Memory)(nil)
