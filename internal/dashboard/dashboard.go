// Package dashboard runs the reconciliation engine. All view state is owned
// by a single event loop goroutine; every operation is queued onto it, so
// snapshots are applied strictly in arrival order and never interleave.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fu-tracker/dashboard/internal/catalog"
	"github.com/fu-tracker/dashboard/internal/channel"
	"github.com/fu-tracker/dashboard/internal/logging"
	"github.com/fu-tracker/dashboard/internal/models"
	"github.com/fu-tracker/dashboard/internal/observability"
	"github.com/fu-tracker/dashboard/internal/reconcile"
	"github.com/fu-tracker/dashboard/internal/view"
)

var (
	// ErrUnknownUnit is returned for an fu_id that is not rendered.
	ErrUnknownUnit = errors.New("unknown field unit")

	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.New("dashboard stopped")
)

// Options configures a Dashboard.
type Options struct {
	Emitter          view.Emitter
	Metrics          *observability.DashboardCollector
	Logger           logging.Logger
	LogLines         int // log ring size
	EventBuffer      int
	SubscriberBuffer int
}

// Status is the operator-visible health of the dashboard.
type Status struct {
	CatalogLoaded    bool      `json:"catalog_loaded"`
	CatalogSize      int       `json:"catalog_size"`
	CatalogError     string    `json:"catalog_error,omitempty"`
	ChannelConnected bool      `json:"channel_connected"`
	ChannelError     string    `json:"channel_error,omitempty"`
	LastSnapshotAt   time.Time `json:"last_snapshot_at,omitempty"`
	Units            int       `json:"units"`
}

// Dashboard owns the view registry, the reconciler and the log ring.
type Dashboard struct {
	events  chan func()
	stopped chan struct{}
	once    sync.Once

	// Owned by the event loop.
	catalog    *catalog.Store
	registry   *view.Registry
	binder     *view.Binder
	reconciler *reconcile.Reconciler
	logs       []string
	subs       map[string]*Subscription

	emitter  view.Emitter
	metrics  *observability.DashboardCollector
	log      logging.Logger
	logLines int
	subBuf   int

	statusMu sync.RWMutex
	status   Status
}

// New creates a Dashboard with an empty catalog. Call Run to start it.
func New(opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.LogLines <= 0 {
		opts.LogLines = 500
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 256
	}

	store := catalog.Empty()
	registry := view.NewRegistry()
	return &Dashboard{
		events:     make(chan func(), opts.EventBuffer),
		stopped:    make(chan struct{}),
		catalog:    store,
		registry:   registry,
		binder:     view.NewBinder(registry, store, opts.Emitter),
		reconciler: reconcile.New(),
		subs:       make(map[string]*Subscription),
		emitter:    opts.Emitter,
		metrics:    opts.Metrics,
		log:        opts.Logger.With(logging.Component("dashboard")),
		logLines:   opts.LogLines,
		subBuf:     opts.SubscriberBuffer,
	}
}

// Run processes queued events until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-d.events:
			fn()
		}
	}
}

func (d *Dashboard) stop() {
	d.once.Do(func() {
		close(d.stopped)
		for id, sub := range d.subs {
			sub.close()
			delete(d.subs, id)
		}
	})
}

// enqueue queues fn without waiting for it to run.
func (d *Dashboard) enqueue(fn func()) error {
	select {
	case <-d.stopped:
		return ErrStopped
	case d.events <- fn:
		return nil
	}
}

// do runs fn on the event loop and waits for it to finish.
func (d *Dashboard) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	case d.events <- wrapped:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	case <-done:
		return nil
	}
}

// LoadCatalog installs the catalog. Controls created afterwards are seeded
// from it.
func (d *Dashboard) LoadCatalog(ctx context.Context, store *catalog.Store) error {
	err := d.do(ctx, func() {
		d.catalog = store
		d.binder = view.NewBinder(d.registry, store, d.emitter)
	})
	if err != nil {
		return err
	}
	d.updateStatus(func(s *Status) {
		s.CatalogLoaded = true
		s.CatalogSize = store.Len()
		s.CatalogError = ""
	})
	d.log.Info(ctx, "catalog loaded", logging.Int("entries", store.Len()))
	return nil
}

// CatalogFailed records a catalog load failure for the operator.
func (d *Dashboard) CatalogFailed(err error) {
	d.updateStatus(func(s *Status) {
		s.CatalogLoaded = false
		s.CatalogError = err.Error()
	})
	d.log.Error(context.Background(), "catalog unavailable; live updates withheld", logging.Err(err))
}

// ChannelState satisfies channel.StateFunc.
func (d *Dashboard) ChannelState(connected bool, err error) {
	d.updateStatus(func(s *Status) {
		s.ChannelConnected = connected
		s.ChannelError = ""
		if err != nil {
			s.ChannelError = err.Error()
		}
	})
	d.metrics.SetConnected(connected)
}

// HandleInbound queues a message from the push channel. It satisfies
// channel.Handler and preserves arrival order.
func (d *Dashboard) HandleInbound(msg channel.Inbound) {
	if err := d.enqueue(func() { d.dispatch(msg) }); err != nil {
		d.log.Debug(context.Background(), "inbound message after stop")
	}
}

func (d *Dashboard) dispatch(msg channel.Inbound) {
	switch m := msg.(type) {
	case channel.Snapshot:
		d.applySnapshot(m.Clients)
	case channel.LogLine:
		d.appendLog(m.Text)
	default:
		d.log.Warn(context.Background(), "unhandled inbound message", logging.String("type", fmt.Sprintf("%T", msg)))
	}
}

// ApplySnapshot reconciles a snapshot and waits for it to complete.
func (d *Dashboard) ApplySnapshot(ctx context.Context, units []models.FieldUnit) error {
	return d.do(ctx, func() { d.applySnapshot(units) })
}

func (d *Dashboard) applySnapshot(units []models.FieldUnit) {
	ctx := context.Background()
	start := time.Now()

	diff := d.reconciler.Apply(units)
	if len(diff.Duplicates) > 0 {
		d.log.Warn(ctx, "snapshot lists fu_id more than once; last occurrence kept",
			logging.Strings("fu_ids", diff.Duplicates))
	}
	if diff.Dropped > 0 {
		d.log.Warn(ctx, "snapshot records without fu_id skipped", logging.Int("count", diff.Dropped))
	}

	mutations := d.binder.Apply(diff)
	elapsed := time.Since(start)

	ops := make(map[string]int, 3)
	for _, m := range mutations {
		ops[m.Op]++
	}
	d.metrics.SnapshotApplied(elapsed, d.registry.Len(), len(diff.Duplicates), diff.Dropped, ops)
	d.updateStatus(func(s *Status) {
		s.LastSnapshotAt = start
		s.Units = d.registry.Len()
	})
	if rendered := d.registry.Keys(); !rendered.Equal(diff.Keys) {
		d.log.Error(ctx, "rendered units diverge from snapshot",
			logging.Strings("rendered", rendered.Sorted()),
			logging.Strings("snapshot", diff.Keys.Sorted()))
	}
	if diff.Empty() {
		d.log.Debug(ctx, "snapshot refreshed readings",
			logging.Int("updated", len(diff.ToUpdate)),
			logging.Int("mutations", len(mutations)))
	} else {
		d.log.Debug(ctx, "snapshot applied",
			logging.Int("created", len(diff.ToCreate)),
			logging.Int("updated", len(diff.ToUpdate)),
			logging.Int("removed", len(diff.ToRemove)),
			logging.Int("mutations", len(mutations)))
	}

	d.publish(mutations)
}

func (d *Dashboard) appendLog(line string) {
	d.logs = append(d.logs, line)
	if over := len(d.logs) - d.logLines; over > 0 {
		d.logs = append(d.logs[:0], d.logs[over:]...)
	}
	d.publish([]view.Mutation{{Op: view.OpLog, Line: line}})
}

// AppendLog adds an operator-visible line, as if it came from the hub.
func (d *Dashboard) AppendLog(ctx context.Context, line string) error {
	return d.do(ctx, func() { d.appendLog(line) })
}

// Select applies an operator change to the unit's selection control. It
// reports whether a command was emitted. A select mutation is published
// whenever the displayed selection changes, sent or not.
func (d *Dashboard) Select(ctx context.Context, fuID, satellite string) (emitted bool, err error) {
	doErr := d.do(ctx, func() {
		v, ok := d.registry.Get(fuID)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownUnit, fuID)
			return
		}
		before, _ := v.Control.Selected()
		emitted, err = v.Control.Change(satellite)
		// A failed send still changes the displayed selection; every
		// browser has to see it.
		if after, _ := v.Control.Selected(); emitted || after != before {
			state := v.Control.State()
			d.publish([]view.Mutation{{Op: view.OpSelect, FuID: fuID, Control: &state}})
		}
	})
	if doErr != nil {
		return false, doErr
	}
	return emitted, err
}

// Units returns the state of every rendered unit, sorted by fu_id.
func (d *Dashboard) Units(ctx context.Context) ([]view.UnitState, error) {
	var out []view.UnitState
	err := d.do(ctx, func() {
		units := d.registry.Units()
		out = make([]view.UnitState, 0, len(units))
		for _, v := range units {
			out = append(out, v.State())
		}
	})
	return out, err
}

// Unit returns one rendered unit.
func (d *Dashboard) Unit(ctx context.Context, fuID string) (view.UnitState, error) {
	var (
		state view.UnitState
		found bool
	)
	err := d.do(ctx, func() {
		if v, ok := d.registry.Get(fuID); ok {
			state, found = v.State(), true
		}
	})
	if err != nil {
		return view.UnitState{}, err
	}
	if !found {
		return view.UnitState{}, fmt.Errorf("%w: %s", ErrUnknownUnit, fuID)
	}
	return state, nil
}

// Keys returns the rendered key set.
func (d *Dashboard) Keys(ctx context.Context) (reconcile.KeySet, error) {
	var keys reconcile.KeySet
	err := d.do(ctx, func() { keys = d.registry.Keys() })
	return keys, err
}

// Logs returns the buffered log lines, oldest first.
func (d *Dashboard) Logs(ctx context.Context) ([]string, error) {
	var out []string
	err := d.do(ctx, func() {
		out = make([]string, len(d.logs))
		copy(out, d.logs)
	})
	return out, err
}

// Catalog returns the installed catalog.
func (d *Dashboard) Catalog(ctx context.Context) (*catalog.Store, error) {
	var store *catalog.Store
	err := d.do(ctx, func() { store = d.catalog })
	return store, err
}

// Status returns a copy of the current status.
func (d *Dashboard) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

func (d *Dashboard) updateStatus(fn func(*Status)) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	fn(&d.status)
}

// Subscription delivers view mutations to one browser.
type Subscription struct {
	ID     string
	ch     chan view.Mutation
	closed bool
}

// C is closed when the subscription is dropped or the dashboard stops.
func (s *Subscription) C() <-chan view.Mutation { return s.ch }

func (s *Subscription) close() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe registers a mutation feed. It returns the current view as
// create mutations; later mutations arrive on the subscription.
func (d *Dashboard) Subscribe(ctx context.Context) (*Subscription, []view.Mutation, error) {
	var (
		sub     *Subscription
		initial []view.Mutation
	)
	err := d.do(ctx, func() {
		sub = &Subscription{
			ID: uuid.New().String(),
			ch: make(chan view.Mutation, d.subBuf),
		}
		d.subs[sub.ID] = sub
		initial = d.registry.CreateMutations()
	})
	if err != nil {
		return nil, nil, err
	}
	return sub, initial, nil
}

// Unsubscribe removes a feed and closes its channel.
func (d *Dashboard) Unsubscribe(sub *Subscription) {
	_ = d.enqueue(func() {
		if _, ok := d.subs[sub.ID]; ok {
			delete(d.subs, sub.ID)
			sub.close()
		}
	})
}

// publish fans mutations out to every subscriber. A subscriber that cannot
// keep up is dropped; it resubscribes to get a fresh view.
func (d *Dashboard) publish(mutations []view.Mutation) {
	if len(mutations) == 0 {
		return
	}
	for id, sub := range d.subs {
		for _, m := range mutations {
			select {
			case sub.ch <- m:
				continue
			default:
			}
			d.log.Warn(context.Background(), "dropping slow view subscriber", logging.String("subscriber", id))
			delete(d.subs, id)
			sub.close()
			break
		}
	}
}
