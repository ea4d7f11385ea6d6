package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/crafting"
	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

// Notifier receives everything an owner's client should see. Calls come
// from the owner's goroutine and must not block.
type Notifier interface {
	inventory.Observer
	crafting.Observer
	CraftableChanged(id recipe.ID, craftable int)
}

type command struct {
	fn   func()
	done chan struct{}
}

// Owner is the single execution context of one connected owner. Every
// inventory and crafting call runs on its goroutine, in submission order.
type Owner struct {
	id       inventory.OwnerID
	inv      *inventory.Inventory
	engine   *crafting.Engine
	notifier Notifier
	log      *zap.Logger

	cmds    chan command
	tickSig chan struct{}
	pending atomic.Int64 // accumulated tick time not yet applied

	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	saveMu   sync.Mutex // orders autosaves before the final save

	unsubscribe []func()

	lastRecipe    recipe.ID
	lastCraftable int
}

func newOwner(id inventory.OwnerID, inv *inventory.Inventory, engine *crafting.Engine, n Notifier, log *zap.Logger) *Owner {
	o := &Owner{
		id:       id,
		inv:      inv,
		engine:   engine,
		notifier: n,
		log:      log,
		cmds:     make(chan command),
		tickSig:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if n != nil {
		o.unsubscribe = append(o.unsubscribe, inv.Subscribe(n), engine.Subscribe(n))
	}
	go o.loop()
	return o
}

// ID returns the owner identifier.
func (o *Owner) ID() inventory.OwnerID { return o.id }

func (o *Owner) loop() {
	defer close(o.stopped)
	for {
		select {
		case cmd := <-o.cmds:
			o.run(cmd.fn)
			close(cmd.done)
		case <-o.tickSig:
			delta := time.Duration(o.pending.Swap(0))
			o.run(func() { o.engine.Tick(delta) })
		case <-o.quit:
			return
		}
	}
}

// run executes fn and then publishes a craftable change. A panicking
// command is logged and the owner keeps serving.
func (o *Owner) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("owner command panicked", zap.Any("panic", r))
		}
	}()
	fn()
	o.flushCraftable()
}

func (o *Owner) flushCraftable() {
	sel := o.engine.Selected()
	n := o.engine.CraftableSelected()
	if sel == o.lastRecipe && n == o.lastCraftable {
		return
	}
	o.lastRecipe, o.lastCraftable = sel, n
	if o.notifier != nil {
		o.notifier.CraftableChanged(sel, n)
	}
}

// Do runs fn on the owner's goroutine and waits for it. It fails with
// ErrNotConnected once the owner has stopped.
func (o *Owner) Do(ctx context.Context, fn func(inv *inventory.Inventory, engine *crafting.Engine)) error {
	cmd := command{
		fn:   func() { fn(o.inv, o.engine) },
		done: make(chan struct{}),
	}
	select {
	case o.cmds <- cmd:
	case <-o.stopped:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick queues delta for the crafting engine without waiting. Deltas that
// arrive while the owner is busy are merged into the next tick.
func (o *Owner) Tick(delta time.Duration) {
	if delta <= 0 {
		return
	}
	o.pending.Add(int64(delta))
	select {
	case o.tickSig <- struct{}{}:
	default:
	}
}

// Advance applies delta synchronously.
func (o *Owner) Advance(ctx context.Context, delta time.Duration) error {
	return o.Do(ctx, func(_ *inventory.Inventory, e *crafting.Engine) { e.Tick(delta) })
}

// ModifyQuantity changes a resource amount and returns the unfulfilled part.
func (o *Owner) ModifyQuantity(ctx context.Context, id resource.ID, delta int) (int, error) {
	var rest int
	err := o.Do(ctx, func(inv *inventory.Inventory, _ *crafting.Engine) {
		rest = inv.ModifyQuantity(id, delta)
	})
	if err != nil {
		return delta, err
	}
	o.log.Debug("quantity modified",
		zap.Uint32("resource", uint32(id)),
		zap.Int("delta", delta),
		zap.Int("unfulfilled", rest))
	return rest, nil
}

// SelectRecipe changes the crafting selection.
func (o *Owner) SelectRecipe(ctx context.Context, id recipe.ID) error {
	return o.engineCall(ctx, func(e *crafting.Engine) error { return e.Select(id) })
}

// CraftOne requests one unit of the selected recipe.
func (o *Owner) CraftOne(ctx context.Context) error {
	return o.engineCall(ctx, (*crafting.Engine).CraftOne)
}

// CraftAll requests every unit the inventory covers.
func (o *Owner) CraftAll(ctx context.Context) error {
	return o.engineCall(ctx, (*crafting.Engine).CraftAll)
}

// CancelCraft stops the running craft.
func (o *Owner) CancelCraft(ctx context.Context) error {
	return o.engineCall(ctx, (*crafting.Engine).Cancel)
}

func (o *Owner) engineCall(ctx context.Context, fn func(*crafting.Engine) error) error {
	var callErr error
	if err := o.Do(ctx, func(_ *inventory.Inventory, e *crafting.Engine) { callErr = fn(e) }); err != nil {
		return err
	}
	return callErr
}

// Snapshot copies the inventory for persistence.
func (o *Owner) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	var snap inventory.Snapshot
	err := o.Do(ctx, func(inv *inventory.Inventory, _ *crafting.Engine) { snap = inv.Snapshot() })
	return snap, err
}

// Bags copies the bag views for presentation.
func (o *Owner) Bags(ctx context.Context) ([]inventory.BagView, error) {
	var bags []inventory.BagView
	err := o.Do(ctx, func(inv *inventory.Inventory, _ *crafting.Engine) { bags = inv.Bags() })
	return bags, err
}

// Status copies the crafting state.
func (o *Owner) Status(ctx context.Context) (crafting.Status, error) {
	var st crafting.Status
	err := o.Do(ctx, func(_ *inventory.Inventory, e *crafting.Engine) { st = e.Status() })
	return st, err
}

// stop cancels a running craft, takes a final snapshot and ends the
// goroutine. Observers are detached before the goroutine exits so nothing
// reaches the notifier afterwards.
func (o *Owner) stop(ctx context.Context) (inventory.Snapshot, error) {
	var snap inventory.Snapshot
	err := o.Do(ctx, func(inv *inventory.Inventory, e *crafting.Engine) {
		if e.State() == crafting.Crafting {
			_ = e.Cancel()
		}
		snap = inv.Snapshot()
		for _, unsub := range o.unsubscribe {
			unsub()
		}
		o.unsubscribe = nil
		o.notifier = nil
		e.Close()
	})
	o.stopOnce.Do(func() { close(o.quit) })
	<-o.stopped
	if err != nil {
		return inventory.Snapshot{}, fmt.Errorf("stop owner %s: %w", o.id, err)
	}
	return snap, nil
}
