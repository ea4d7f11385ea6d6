// Package crafting runs the per-owner crafting state machine: craftable
// counts, timed multi-unit crafts, cancellation and result reporting.
package crafting

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

// Option configures an Engine.
type Option func(*Engine)

// WithAuthority sets the isAuthority flag reported with every result.
func WithAuthority(authority bool) Option {
	return func(e *Engine) { e.authority = authority }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

type subscription struct {
	id  int
	obs Observer
}

// Engine is one owner's crafting session. It is not safe for concurrent
// use; the session layer drives it from a single goroutine.
type Engine struct {
	owner     inventory.OwnerID
	inv       Inventory
	recipes   *recipe.Catalog
	authority bool
	log       *zap.Logger

	state     State
	selected  recipe.ID
	requested int
	remaining int
	produced  int
	elapsed   time.Duration

	// craftable caches Craftable(selected). dirty marks it stale after a
	// mutation of a resource the selected recipe needs.
	craftable int
	dirty     bool
	required  map[resource.ID]struct{}

	subs     []subscription
	nextSub  int
	detachFn func()
}

// New creates an Idle engine bound to inv. The engine subscribes to inv so
// the craftable cache follows inventory changes; call Close to detach.
func New(owner inventory.OwnerID, inv Inventory, recipes *recipe.Catalog, opts ...Option) *Engine {
	e := &Engine{
		owner:     owner,
		inv:       inv,
		recipes:   recipes,
		authority: true,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.log = e.log.With(zap.String("owner", string(owner)))
	e.detachFn = inv.Subscribe(inventory.ObserverFuncs{
		OnSlotChanged: e.slotChanged,
		OnBulkChanged: e.bulkChanged,
	})
	return e
}

// Close detaches the engine from its inventory and drops every observer.
func (e *Engine) Close() {
	if e.detachFn != nil {
		e.detachFn()
		e.detachFn = nil
	}
	e.subs = nil
}

// Subscribe registers an observer and returns its removal function.
func (e *Engine) Subscribe(obs Observer) (unsubscribe func()) {
	if obs == nil {
		return func() {}
	}
	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, subscription{id: id, obs: obs})
	return func() {
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Selected returns the selected recipe, zero when none.
func (e *Engine) Selected() recipe.ID { return e.selected }

// Select chooses the recipe subsequent craft requests use. Zero clears the
// selection. The selection cannot change while crafting.
func (e *Engine) Select(id recipe.ID) error {
	if e.state == Crafting {
		return ErrAlreadyCrafting
	}
	if id == 0 {
		e.selected = 0
		e.required = nil
		e.craftable = 0
		e.dirty = false
		return nil
	}
	def, err := e.recipes.Lookup(id)
	if err != nil {
		return err
	}
	e.selected = id
	e.required = make(map[resource.ID]struct{}, len(def.Requirements))
	for _, req := range def.Requirements {
		e.required[req.ID] = struct{}{}
	}
	e.craftable = e.compute(def)
	e.dirty = false
	return nil
}

// Craftable returns how many units of id the inventory can currently cover:
// the minimum over requirements of held/required, rounded down. Unknown
// recipes and recipes without requirements yield zero.
func (e *Engine) Craftable(id recipe.ID) int {
	def, err := e.recipes.Lookup(id)
	if err != nil {
		return 0
	}
	return e.compute(def)
}

func (e *Engine) compute(def recipe.Definition) int {
	if len(def.Requirements) == 0 {
		return 0
	}
	// Requirements may list one resource more than once.
	need := make(map[resource.ID]int, len(def.Requirements))
	for _, req := range def.Requirements {
		need[req.ID] += req.Amount
	}
	n := math.MaxInt
	for id, amount := range need {
		n = min(n, e.inv.Quantity(id)/amount)
	}
	return n
}

// CraftableSelected returns the cached craftable count of the selected recipe.
func (e *Engine) CraftableSelected() int {
	if e.dirty {
		e.RefreshCraftable()
	}
	return e.craftable
}

// CraftableAll returns the craftable count of every catalog recipe.
func (e *Engine) CraftableAll() map[recipe.ID]int {
	all := e.recipes.All()
	out := make(map[recipe.ID]int, len(all))
	for _, def := range all {
		out[def.ID] = e.compute(def)
	}
	return out
}

// RefreshCraftable recomputes a stale craftable cache and reports whether
// the value changed.
func (e *Engine) RefreshCraftable() (craftable int, changed bool) {
	if !e.dirty {
		return e.craftable, false
	}
	e.dirty = false
	prev := e.craftable
	if e.selected == 0 {
		e.craftable = 0
	} else {
		e.craftable = e.Craftable(e.selected)
	}
	return e.craftable, e.craftable != prev
}

func (e *Engine) slotChanged(_, _ int, content resource.Quantity) {
	if e.selected == 0 {
		return
	}
	// An emptied slot no longer says what it held.
	if content.IsUnset() {
		e.dirty = true
		return
	}
	if _, ok := e.required[content.ID]; ok {
		e.dirty = true
	}
}

func (e *Engine) bulkChanged() {
	if e.selected == 0 {
		return
	}
	e.dirty = true
}

// CraftOne requests a single unit of the selected recipe.
func (e *Engine) CraftOne() error {
	return e.Craft(1)
}

// CraftAll requests as many units as the inventory covers right now.
func (e *Engine) CraftAll() error {
	if e.state == Crafting {
		return ErrAlreadyCrafting
	}
	if e.selected == 0 {
		return e.Craft(0)
	}
	n := e.Craftable(e.selected)
	if n == 0 {
		e.reject()
		return fmt.Errorf("%w: recipe %d", ErrInsufficientResources, e.selected)
	}
	return e.Craft(n)
}

// Craft starts producing n units of the selected recipe. Resources are only
// checked here, not reserved; consumption happens as each unit completes.
//
// Every rejection reports Failed to observers except ErrAlreadyCrafting:
// the running craft is still going and its own result is yet to come.
func (e *Engine) Craft(n int) error {
	if e.state == Crafting {
		return ErrAlreadyCrafting
	}
	if e.selected == 0 {
		e.reject()
		return fmt.Errorf("%w: no recipe selected", ErrInvalidRecipe)
	}
	if n < 1 {
		e.reject()
		return fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	def, err := e.recipes.Lookup(e.selected)
	if err != nil {
		e.reject()
		return err
	}
	if avail := e.compute(def); avail == 0 || n > avail {
		e.reject()
		return fmt.Errorf("%w: recipe %d: want %d, can craft %d", ErrInsufficientResources, def.ID, n, avail)
	}

	e.state = Crafting
	e.requested = n
	e.remaining = n
	e.produced = 0
	e.elapsed = 0
	e.log.Debug("craft started",
		zap.Uint32("recipe", uint32(def.ID)),
		zap.Int("units", n),
	)
	return nil
}

// Cancel stops a running craft. The unit in progress is discarded and
// nothing is refunded, since resources are only consumed on completion.
func (e *Engine) Cancel() error {
	if e.state != Crafting {
		return ErrNotCrafting
	}
	e.finish(Canceled, "canceled by owner")
	return nil
}

// Tick advances the running craft by delta. At most one unit completes per
// tick.
func (e *Engine) Tick(delta time.Duration) {
	if e.state != Crafting {
		return
	}
	if delta < 0 {
		delta = 0
	}
	def, err := e.recipes.Lookup(e.selected)
	if err != nil {
		e.finish(Failed, "recipe disappeared")
		return
	}

	e.elapsed += delta
	percent := min(float64(e.elapsed)/float64(def.Duration), 1)
	e.progress(def.ID, percent, delta)

	if e.elapsed < def.Duration {
		return
	}
	e.completeUnit(def)
}

func (e *Engine) completeUnit(def recipe.Definition) {
	if e.compute(def) < 1 {
		e.finish(Failed, "requirements no longer held")
		return
	}
	if !e.inv.Fits(def.Requirements, def.Result) {
		e.finish(Failed, "no room for result")
		return
	}

	for _, req := range def.Requirements {
		e.inv.ModifyQuantity(req.ID, -req.Amount)
	}
	e.inv.ModifyQuantity(def.Result.ID, def.Result.Amount)

	e.remaining--
	e.produced++
	e.elapsed = 0
	if e.remaining == 0 {
		e.finish(Completed, "")
	}
}

// reject reports a refused craft request. The state is left untouched.
func (e *Engine) reject() {
	e.result(e.selected, Failed)
}

func (e *Engine) finish(state State, reason string) {
	e.state = state
	e.remaining = 0
	e.elapsed = 0
	fields := []zap.Field{
		zap.Uint32("recipe", uint32(e.selected)),
		zap.Stringer("result", state),
		zap.Int("produced", e.produced),
		zap.Int("requested", e.requested),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	e.log.Info("craft finished", fields...)
	e.result(e.selected, state)
}

func (e *Engine) progress(id recipe.ID, percent float64, delta time.Duration) {
	for _, s := range e.snapshotSubs() {
		s.obs.CraftProgress(id, percent, delta)
	}
}

func (e *Engine) result(id recipe.ID, state State) {
	for _, s := range e.snapshotSubs() {
		s.obs.CraftResult(id, state, e.authority)
	}
}

func (e *Engine) snapshotSubs() []subscription {
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	return subs
}

// Status returns a copy of the session state.
func (e *Engine) Status() Status {
	st := Status{
		Owner:     e.owner,
		State:     e.state,
		Recipe:    e.selected,
		Requested: e.requested,
		Remaining: e.remaining,
		Produced:  e.produced,
		Elapsed:   e.elapsed,
		Craftable: e.CraftableSelected(),
	}
	if def, err := e.recipes.Lookup(e.selected); err == nil {
		st.Duration = def.Duration
	}
	return st
}
