package store

import (
	"context"
	"sync"
)

type bucket struct {
	mu    sync.RWMutex
	items map[Key]*Resource
}

// Memory keeps resources in process memory with one lock per kind.
type Memory struct {
	mu      sync.Mutex
	buckets map[Kind]*bucket
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[Kind]*bucket)}
}

func (m *Memory) bucket(kind Kind) *bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[kind]
	if !ok {
		b = &bucket{items: make(map[Key]*Resource)}
		m.buckets[kind] = b
	}
	return b
}

func (m *Memory) Get(_ context.Context, kind Kind, key Key) (*Resource, error) {
	b := m.bucket(kind)
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, kind Kind, key Key, fn MutateFunc) (*Resource, error) {
	b := m.bucket(kind)
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := fn(b.items[key].Clone())
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if next == nil {
		return b.items[key].Clone(), nil
	}
	stored := next.Clone()
	stored.Kind = kind
	stored.Key = key
	b.items[key] = stored
	return stored.Clone(), nil
}

func (m *Memory) Remove(_ context.Context, kind Kind, key Key) error {
	b := m.bucket(kind)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[key]; !ok {
		return ErrNotFound
	}
	delete(b.items, key)
	return nil
}

func (m *Memory) List(_ context.Context, kind Kind, opts ListOptions) ([]*Resource, int, error) {
	b := m.bucket(kind)
	b.mu.RLock()
	matched := make([]*Resource, 0, len(b.items))
	for _, r := range b.items {
		if opts.match(r) {
			matched = append(matched, r.Clone())
		}
	}
	b.mu.RUnlock()
	sortResources(matched)
	return page(matched, opts.Offset, opts.Limit), len(matched), nil
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}
