package view

import (
	"sort"

	"github.com/fu-tracker/dashboard/internal/catalog"
	"github.com/fu-tracker/dashboard/internal/models"
	"github.com/fu-tracker/dashboard/internal/reconcile"
)

// Mutation operations.
const (
	OpCreate = "create"
	OpPatch  = "patch"
	OpRemove = "remove"
	OpSelect = "select"
	OpLog    = "log"
)

// Mutation is one change to the rendered view, as sent to browsers.
type Mutation struct {
	Op      string        `json:"op"`
	FuID    string        `json:"fu_id,omitempty"`
	Fields  Fields        `json:"fields,omitempty"`
	Control *ControlState `json:"control,omitempty"`
	Line    string        `json:"line,omitempty"`
}

// Registry owns the view units, keyed by fu_id.
type Registry struct {
	units map[string]*UnitView
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*UnitView)}
}

// Get returns the view for id.
func (r *Registry) Get(id string) (*UnitView, bool) {
	v, ok := r.units[id]
	return v, ok
}

// Len returns the number of view units.
func (r *Registry) Len() int { return len(r.units) }

// Keys returns the rendered key set.
func (r *Registry) Keys() reconcile.KeySet {
	ks := make(reconcile.KeySet, len(r.units))
	for id := range r.units {
		ks[id] = struct{}{}
	}
	return ks
}

// Units returns all views sorted by fu_id.
func (r *Registry) Units() []*UnitView {
	out := make([]*UnitView, 0, len(r.units))
	for _, v := range r.units {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuID < out[j].FuID })
	return out
}

// Binder creates, patches and removes view units in a registry.
type Binder struct {
	registry *Registry
	catalog  *catalog.Store
	emitter  Emitter
}

// NewBinder creates a binder whose controls draw options from store and
// send selections through emitter.
func NewBinder(registry *Registry, store *catalog.Store, emitter Emitter) *Binder {
	return &Binder{
		registry: registry,
		catalog:  store,
		emitter:  emitter,
	}
}

// Create materialises a new unit with a fresh selection control.
func (b *Binder) Create(u models.FieldUnit) (*UnitView, Mutation) {
	v := &UnitView{
		FuID:    u.FuID,
		Fields:  RenderFields(u),
		Control: NewSelectionControl(u.FuID, b.catalog, u.Satellite, b.emitter),
	}
	b.registry.units[u.FuID] = v

	state := v.State()
	return v, Mutation{
		Op:      OpCreate,
		FuID:    u.FuID,
		Fields:  state.Fields,
		Control: &state.Control,
	}
}

// Update rewrites the measurement fields of an existing view. The control,
// and so the operator's selection, is left alone. The mutation carries
// only the fields whose text changed; ok is false when nothing did.
func (b *Binder) Update(v *UnitView, u models.FieldUnit) (m Mutation, ok bool) {
	next := RenderFields(u)
	changed := make(Fields)
	for _, name := range MeasurementFields {
		if v.Fields[name] != next[name] {
			changed[name] = next[name]
		}
		v.Fields[name] = next[name]
	}
	if len(changed) == 0 {
		return Mutation{}, false
	}
	return Mutation{Op: OpPatch, FuID: v.FuID, Fields: changed}, true
}

// Remove destroys a view and releases its control.
func (b *Binder) Remove(v *UnitView) Mutation {
	v.Control.Close()
	delete(b.registry.units, v.FuID)
	return Mutation{Op: OpRemove, FuID: v.FuID}
}

// Apply runs a reconcile diff against the registry: removals first, then
// patches, then creations. It returns the resulting mutations in that order.
func (b *Binder) Apply(diff reconcile.Diff) []Mutation {
	mutations := make([]Mutation, 0, len(diff.ToRemove)+len(diff.ToUpdate)+len(diff.ToCreate))

	for _, id := range diff.ToRemove {
		if v, ok := b.registry.Get(id); ok {
			mutations = append(mutations, b.Remove(v))
		}
	}

	for _, u := range diff.ToUpdate {
		v, ok := b.registry.Get(u.FuID)
		if !ok {
			_, m := b.Create(u)
			mutations = append(mutations, m)
			continue
		}
		if m, changed := b.Update(v, u); changed {
			mutations = append(mutations, m)
		}
	}

	for _, u := range diff.ToCreate {
		if v, ok := b.registry.Get(u.FuID); ok {
			if m, changed := b.Update(v, u); changed {
				mutations = append(mutations, m)
			}
			continue
		}
		_, m := b.Create(u)
		mutations = append(mutations, m)
	}

	return mutations
}

// CreateMutations renders the whole registry as create mutations, for a
// browser that has just subscribed.
func (r *Registry) CreateMutations() []Mutation {
	units := r.Units()
	out := make([]Mutation, 0, len(units))
	for _, v := range units {
		state := v.State()
		out = append(out, Mutation{
			Op:      OpCreate,
			FuID:    v.FuID,
			Fields:  state.Fields,
			Control: &state.Control,
		})
	}
	return out
}
