package persistence

import (
	"context"
	"sync"

	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/resource"
)

// Memory keeps snapshots in process memory. Nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string]inventory.Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{snaps: make(map[string]inventory.Snapshot)}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, owner inventory.OwnerID, category inventory.Category) (inventory.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[recordKey(owner, category)]
	if !ok {
		return inventory.Snapshot{}, ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, owner inventory.OwnerID, category inventory.Category, snap inventory.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[recordKey(owner, category)] = cloneSnapshot(snap)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

func cloneSnapshot(snap inventory.Snapshot) inventory.Snapshot {
	out := snap
	out.Bags = make([]inventory.BagSnapshot, len(snap.Bags))
	for i, b := range snap.Bags {
		out.Bags[i] = b
		out.Bags[i].Slots = append([]resource.Quantity(nil), b.Slots...)
	}
	return out
}
