// Package persistence stores inventory snapshots. Every backend reads and
// writes whole records keyed by owner and category.
package persistence

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/gravitas-games/craftd/internal/persistence Store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gravitas-games/craftd/internal/inventory"
)

// ErrNotFound is returned by Load when nothing is stored for the key.
var ErrNotFound = errors.New("persistence: snapshot not found")

// Store loads and saves inventory snapshots.
type Store interface {
	Load(ctx context.Context, owner inventory.OwnerID, category inventory.Category) (inventory.Snapshot, error)
	Save(ctx context.Context, owner inventory.OwnerID, category inventory.Category, snap inventory.Snapshot) error
	Close() error
}

// recordKey is the backend-independent key of one snapshot.
func recordKey(owner inventory.OwnerID, category inventory.Category) string {
	return fmt.Sprintf("%s:%s", owner, category)
}

func encode(snap inventory.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (inventory.Snapshot, error) {
	var snap inventory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return inventory.Snapshot{}, fmt.Errorf("persistence: decode snapshot: %w", err)
	}
	return snap, nil
}
