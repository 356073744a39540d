// Package view materialises field units as view units and produces the
// mutations browsers apply to their markup.
package view

import (
	"strconv"

	"github.com/fu-tracker/dashboard/internal/models"
)

// Placeholder is shown for any missing attribute.
const Placeholder = "--"

// Display field names. They double as the keys of a patch.
const (
	FieldTemperature = "temp"
	FieldHumidity    = "hum"
	FieldLatitude    = "gps-lat"
	FieldLongitude   = "gps-lon"
	FieldAzimuth     = "az"
	FieldElevation   = "el"
)

// MeasurementFields lists the patchable fields in display order.
var MeasurementFields = []string{
	FieldTemperature,
	FieldHumidity,
	FieldLatitude,
	FieldLongitude,
	FieldAzimuth,
	FieldElevation,
}

// Fields is the rendered text of each measurement field.
type Fields map[string]string

// RenderFields formats every measurement of u, substituting the
// placeholder for missing values.
func RenderFields(u models.FieldUnit) Fields {
	return Fields{
		FieldTemperature: withUnit(u.Temperature(), " °C"),
		FieldHumidity:    withUnit(u.Humidity(), " %"),
		FieldLatitude:    withUnit(u.Lat(), ""),
		FieldLongitude:   withUnit(u.Lon(), ""),
		FieldAzimuth:     withUnit(u.Az, "°"),
		FieldElevation:   withUnit(u.El, "°"),
	}
}

// FormatValue renders an optional number, or the placeholder.
func FormatValue(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func withUnit(v *float64, suffix string) string {
	return FormatValue(v) + suffix
}

// UnitView is the rendered state of one field unit.
type UnitView struct {
	FuID    string
	Fields  Fields
	Control *SelectionControl
}

// State returns the serialisable form of the view.
func (v *UnitView) State() UnitState {
	fields := make(Fields, len(v.Fields))
	for k, s := range v.Fields {
		fields[k] = s
	}
	return UnitState{
		FuID:    v.FuID,
		Fields:  fields,
		Control: v.Control.State(),
	}
}

// UnitState is what the HTTP surface serves for a unit.
type UnitState struct {
	FuID    string       `json:"fu_id" msgpack:"fu_id"`
	Fields  Fields       `json:"fields" msgpack:"fields"`
	Control ControlState `json:"control" msgpack:"control"`
}
