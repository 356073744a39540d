package view

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fu-tracker/dashboard/internal/catalog"
	"github.com/fu-tracker/dashboard/internal/models"
)

// PlaceholderLabel is the disabled option shown while nothing is selected.
const PlaceholderLabel = "Select satellite"

var (
	// ErrUnknownOption is returned for values outside the catalog; the
	// control never creates new entries.
	ErrUnknownOption = errors.New("satellite not in catalog")

	// ErrControlClosed is returned once the owning unit has been removed.
	ErrControlClosed = errors.New("selection control closed")
)

// Emitter receives operator selections. command.Emitter satisfies it.
type Emitter interface {
	Emit(fuID, satelliteName string) error
}

// SelectionControl is a searchable single-choice picker over the catalog.
// Its selection belongs to the operator; snapshot updates never write it.
type SelectionControl struct {
	id       string
	fuID     string
	options  []models.CatalogEntry
	known    *catalog.Store
	selected string
	emitter  Emitter
	closed   bool
}

// NewSelectionControl builds a control for fuID. The options come from the
// store, already sorted. initial is pre-selected when it names an entry.
func NewSelectionControl(fuID string, store *catalog.Store, initial string, emitter Emitter) *SelectionControl {
	c := &SelectionControl{
		id:      uuid.New().String(),
		fuID:    fuID,
		options: store.All(),
		known:   store,
		emitter: emitter,
	}
	if initial != "" && store.Contains(initial) {
		c.selected = initial
	}
	return c
}

// ID is the instance id browsers use to address this control.
func (c *SelectionControl) ID() string { return c.id }

// FuID is the unit this control belongs to.
func (c *SelectionControl) FuID() string { return c.fuID }

// Selected returns the displayed selection, or false while the
// placeholder is shown.
func (c *SelectionControl) Selected() (string, bool) {
	return c.selected, c.selected != ""
}

// Options returns every option in display order.
func (c *SelectionControl) Options() []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(c.options))
	copy(out, c.options)
	return out
}

// Search filters options by a case-insensitive substring of the label.
func (c *SelectionControl) Search(query string) []models.CatalogEntry {
	return catalog.Filter(c.options, query, catalog.MaxOptions)
}

// Change applies an operator-driven change. Empty values, including the
// placeholder, do nothing. A valid value becomes the displayed selection
// and is emitted upstream; the returned error is the emitter's.
func (c *SelectionControl) Change(value string) (emitted bool, err error) {
	if c.closed {
		return false, ErrControlClosed
	}
	if value == "" || value == "undefined" {
		return false, nil
	}
	if !c.known.Contains(value) {
		return false, fmt.Errorf("%w: %q", ErrUnknownOption, value)
	}

	c.selected = value
	if c.emitter == nil {
		return false, nil
	}
	if err := c.emitter.Emit(c.fuID, value); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the control. Further changes fail with ErrControlClosed.
func (c *SelectionControl) Close() {
	c.closed = true
	c.emitter = nil
	c.options = nil
}

// Closed reports whether Close has been called.
func (c *SelectionControl) Closed() bool { return c.closed }

// State is the serialisable form of a control.
func (c *SelectionControl) State() ControlState {
	return ControlState{
		ID:          c.id,
		Selected:    c.selected,
		Placeholder: PlaceholderLabel,
		OptionCount: len(c.options),
	}
}

// ControlState describes a control to browsers. Options are served
// separately from the catalog endpoint since every control shares them.
type ControlState struct {
	ID          string `json:"id" msgpack:"id"`
	Selected    string `json:"selected,omitempty" msgpack:"selected,omitempty"`
	Placeholder string `json:"placeholder" msgpack:"placeholder"`
	OptionCount int    `json:"option_count" msgpack:"option_count"`
}
