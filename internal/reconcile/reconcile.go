// Package reconcile diffs field-unit snapshots against the previously
// applied key set. It has no knowledge of how units are rendered.
package reconcile

import (
	"sort"

	"github.com/fu-tracker/dashboard/internal/models"
)

// KeySet is a set of fu_id values.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from ids.
func NewKeySet(ids ...string) KeySet {
	ks := make(KeySet, len(ids))
	for _, id := range ids {
		ks[id] = struct{}{}
	}
	return ks
}

// Has reports whether id is in the set.
func (ks KeySet) Has(id string) bool {
	_, ok := ks[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (ks KeySet) Sorted() []string {
	out := make([]string, 0, len(ks))
	for id := range ks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same ids.
func (ks KeySet) Equal(other KeySet) bool {
	if len(ks) != len(other) {
		return false
	}
	for id := range ks {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Diff is the result of reconciling one snapshot.
type Diff struct {
	ToCreate   []models.FieldUnit
	ToUpdate   []models.FieldUnit
	ToRemove   []string
	Duplicates []string // ids listed more than once; last occurrence won
	Dropped    int      // records without an fu_id
	Keys       KeySet   // ids present in the snapshot
}

// Empty reports whether the diff changes nothing structurally.
func (d Diff) Empty() bool {
	return len(d.ToCreate) == 0 && len(d.ToRemove) == 0
}

// Reconcile computes the diff between the previously applied keys and a
// new snapshot. Units keep the position of their first occurrence, but a
// repeated fu_id takes the data of its last occurrence.
func Reconcile(previous KeySet, snapshot []models.FieldUnit) Diff {
	diff := Diff{Keys: make(KeySet, len(snapshot))}

	order := make([]string, 0, len(snapshot))
	latest := make(map[string]models.FieldUnit, len(snapshot))
	seenDup := make(map[string]bool)

	for _, unit := range snapshot {
		if unit.FuID == "" {
			diff.Dropped++
			continue
		}
		if _, seen := latest[unit.FuID]; seen {
			if !seenDup[unit.FuID] {
				seenDup[unit.FuID] = true
				diff.Duplicates = append(diff.Duplicates, unit.FuID)
			}
		} else {
			order = append(order, unit.FuID)
		}
		latest[unit.FuID] = unit
		diff.Keys[unit.FuID] = struct{}{}
	}

	for _, id := range order {
		if previous.Has(id) {
			diff.ToUpdate = append(diff.ToUpdate, latest[id])
		} else {
			diff.ToCreate = append(diff.ToCreate, latest[id])
		}
	}

	for id := range previous {
		if !diff.Keys.Has(id) {
			diff.ToRemove = append(diff.ToRemove, id)
		}
	}
	sort.Strings(diff.ToRemove)

	return diff
}

// Reconciler carries the key set of the last applied snapshot.
// It is not safe for concurrent use.
type Reconciler struct {
	keys KeySet
}

// New creates a Reconciler with nothing applied.
func New() *Reconciler {
	return &Reconciler{keys: make(KeySet)}
}

// Apply diffs snapshot against the last applied keys and commits the
// snapshot's keys as the new state.
func (r *Reconciler) Apply(snapshot []models.FieldUnit) Diff {
	diff := Reconcile(r.keys, snapshot)
	r.keys = diff.Keys
	return diff
}

// Keys returns a copy of the last applied key set.
func (r *Reconciler) Keys() KeySet {
	out := make(KeySet, len(r.keys))
	for id := range r.keys {
		out[id] = struct{}{}
	}
	return out
}
