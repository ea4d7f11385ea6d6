// Package session owns the connected owners: it loads their inventories,
// runs each owner's requests on a dedicated goroutine, drives crafting ticks
// and saves inventories on disconnect and autosave.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/crafting"
	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/persistence"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

var (
	// ErrAlreadyConnected is returned when an owner connects twice.
	ErrAlreadyConnected = errors.New("session: owner already connected")
	// ErrNotConnected is returned for owners without a live session.
	ErrNotConnected = errors.New("session: owner not connected")
)

// Option configures a Manager.
type Option func(*Manager)

// WithBags sets the bag capacities of a freshly created inventory.
func WithBags(capacities ...int) Option {
	return func(m *Manager) { m.bags = append([]int(nil), capacities...) }
}

// WithCategory sets the inventory category loaded for every owner.
func WithCategory(c inventory.Category) Option {
	return func(m *Manager) { m.category = c }
}

// WithTickRate sets how many crafting ticks Run issues per second.
func WithTickRate(hz int) Option {
	return func(m *Manager) {
		if hz > 0 {
			m.tickInterval = time.Second / time.Duration(hz)
		}
	}
}

// WithAutosave makes Run save every connected owner at the interval. Zero
// disables autosave.
func WithAutosave(every time.Duration) Option {
	return func(m *Manager) { m.autosave = every }
}

// WithAuthority sets the isAuthority flag of crafting results.
func WithAuthority(authority bool) Option {
	return func(m *Manager) { m.authority = authority }
}

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager tracks one Owner per connected owner id.
type Manager struct {
	store     persistence.Store
	resources *resource.Registry
	recipes   *recipe.Catalog

	bags         []int
	category     inventory.Category
	tickInterval time.Duration
	autosave     time.Duration
	authority    bool
	log          *logger.Logger

	mu      sync.RWMutex
	owners  map[inventory.OwnerID]*Owner
	joining map[inventory.OwnerID]struct{}
	leaving map[inventory.OwnerID]chan struct{} // closed once the final save is done
}

// NewManager creates a manager. resources and recipes must be frozen.
func NewManager(store persistence.Store, resources *resource.Registry, recipes *recipe.Catalog, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		resources:    resources,
		recipes:      recipes,
		bags:         []int{16},
		category:     inventory.CategoryGeneral,
		tickInterval: time.Second / 20,
		authority:    true,
		log:          logger.Nop(),
		owners:       make(map[inventory.OwnerID]*Owner),
		joining:      make(map[inventory.OwnerID]struct{}),
		leaving:      make(map[inventory.OwnerID]chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// OnOwnerConnected loads (or creates) the owner's inventory, builds its
// crafting engine and starts its goroutine. A reconnect while the previous
// session is still saving waits for that save before loading.
func (m *Manager) OnOwnerConnected(ctx context.Context, id inventory.OwnerID, n Notifier) (*Owner, error) {
	m.mu.Lock()
	for {
		if _, ok := m.owners[id]; ok {
			m.mu.Unlock()
			return nil, ErrAlreadyConnected
		}
		if _, ok := m.joining[id]; ok {
			m.mu.Unlock()
			return nil, ErrAlreadyConnected
		}
		left, ok := m.leaving[id]
		if !ok {
			break
		}
		m.mu.Unlock()
		select {
		case <-left:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	m.joining[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.joining, id)
		m.mu.Unlock()
	}()

	inv, created, err := m.loadInventory(ctx, id)
	if err != nil {
		return nil, err
	}

	log := m.log.With(zap.String("owner", string(id)))
	engine := crafting.New(id, inv, m.recipes,
		crafting.WithAuthority(m.authority),
		crafting.WithLogger(log.Named("crafting")),
	)
	o := newOwner(id, inv, engine, n, log)

	m.mu.Lock()
	m.owners[id] = o
	m.mu.Unlock()

	log.Info("owner connected", zap.Bool("new_inventory", created), zap.Int("bags", inv.BagCount()))
	return o, nil
}

func (m *Manager) loadInventory(ctx context.Context, id inventory.OwnerID) (*inventory.Inventory, bool, error) {
	snap, err := m.store.Load(ctx, id, m.category)
	if errors.Is(err, persistence.ErrNotFound) {
		return inventory.New(id, m.category, m.resources, inventory.WithBags(m.bags...)), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load inventory of %s: %w", id, err)
	}
	snap.Owner = id
	snap.Category = m.category
	inv, err := inventory.FromSnapshot(m.resources, snap)
	if err != nil {
		return nil, false, fmt.Errorf("restore inventory of %s: %w", id, err)
	}
	return inv, false, nil
}

// OnOwnerDisconnected cancels any running craft, stops the owner and saves
// its inventory. The id stays reserved until the save returns.
func (m *Manager) OnOwnerDisconnected(ctx context.Context, id inventory.OwnerID) error {
	m.mu.Lock()
	o, ok := m.owners[id]
	left := make(chan struct{})
	if ok {
		delete(m.owners, id)
		m.leaving[id] = left
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	defer func() {
		m.mu.Lock()
		delete(m.leaving, id)
		m.mu.Unlock()
		close(left)
	}()

	o.saveMu.Lock()
	defer o.saveMu.Unlock()

	snap, err := o.stop(ctx)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, id, m.category, snap); err != nil {
		m.log.Error("failed to save inventory", zap.String("owner", string(id)), zap.Error(err))
		return fmt.Errorf("save inventory of %s: %w", id, err)
	}
	m.log.Info("owner disconnected", zap.String("owner", string(id)))
	return nil
}

// Category returns the inventory category the manager loads.
func (m *Manager) Category() inventory.Category { return m.category }

// Get returns the live owner.
func (m *Manager) Get(id inventory.OwnerID) (*Owner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[id]
	return o, ok
}

// Count returns the number of connected owners.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners)
}

// Owners returns the connected owner ids, sorted.
func (m *Manager) Owners() []inventory.OwnerID {
	m.mu.RLock()
	ids := make([]inventory.OwnerID, 0, len(m.owners))
	for id := range m.owners {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) snapshotOwners() []*Owner {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Owner, 0, len(m.owners))
	for _, o := range m.owners {
		out = append(out, o)
	}
	return out
}

// Run is the tick source. It sends the measured time since the previous
// tick to every owner and autosaves when configured. It returns when ctx is
// done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	var autosave <-chan time.Time
	if m.autosave > 0 {
		t := time.NewTicker(m.autosave)
		defer t.Stop()
		autosave = t.C
	}

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			for _, o := range m.snapshotOwners() {
				o.Tick(delta)
			}
		case <-autosave:
			m.SaveAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SaveAll saves every connected owner. Failures are logged and the first
// one is returned.
func (m *Manager) SaveAll(ctx context.Context) error {
	var first error
	for _, o := range m.snapshotOwners() {
		err := m.save(ctx, o)
		if err != nil && !errors.Is(err, ErrNotConnected) {
			m.log.Error("autosave failed", zap.String("owner", string(o.ID())), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// save writes one autosave. Holding saveMu across snapshot and store keeps
// it ordered before the final save; an owner stopped in the meantime
// reports ErrNotConnected and is skipped.
func (m *Manager) save(ctx context.Context, o *Owner) error {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()
	snap, err := o.Snapshot(ctx)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, o.ID(), m.category, snap)
}

// Shutdown disconnects every owner, saving each inventory.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range m.Owners() {
		if err := m.OnOwnerDisconnected(ctx, id); err != nil && !errors.Is(err, ErrNotConnected) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
