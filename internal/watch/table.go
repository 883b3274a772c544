package watch

import (
	"context"
	"time"

	"local-cache/internal/entity"
	"local-cache/internal/store"
)

// Table decorates a record store so that every mutation which changed rows
// is announced on the hub.
type Table[K comparable, R any] struct {
	store.Table[K, R]
	hub  *Hub
	kind entity.Kind
}

// Wrap returns inner announcing its changes on hub under kind.
func Wrap[K comparable, R any](hub *Hub, kind entity.Kind, inner store.Table[K, R]) *Table[K, R] {
	return &Table[K, R]{Table: inner, hub: hub, kind: kind}
}

func (t *Table[K, R]) InsertIfAbsent(ctx context.Context, record R) (bool, error) {
	written, err := t.Table.InsertIfAbsent(ctx, record)
	if written {
		t.hub.Notify(t.kind, "insert")
	}
	return written, err
}

func (t *Table[K, R]) Put(ctx context.Context, record R) error {
	if err := t.Table.Put(ctx, record); err != nil {
		return err
	}
	t.hub.Notify(t.kind, "put")
	return nil
}

// DeleteByKey announces the deletion only when key was cached.
func (t *Table[K, R]) DeleteByKey(ctx context.Context, key K) error {
	existed, err := t.Table.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := t.Table.DeleteByKey(ctx, key); err != nil {
		return err
	}
	t.hub.Notify(t.kind, "delete")
	return nil
}

func (t *Table[K, R]) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := t.Table.DeleteOlderThan(ctx, cutoff)
	if n > 0 {
		t.hub.Notify(t.kind, "expire")
	}
	return n, err
}

func (t *Table[K, R]) ClearAll(ctx context.Context) (int, error) {
	n, err := t.Table.ClearAll(ctx)
	if n > 0 {
		t.hub.Notify(t.kind, "clear")
	}
	return n, err
}
