package models

// SensorData holds the environmental readings reported by a field unit.
type SensorData struct {
	Temperature *float64 `json:"temperature,omitempty" msgpack:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty" msgpack:"humidity,omitempty"`
}

// GPS is the last known position of a field unit.
type GPS struct {
	Lat *float64 `json:"lat,omitempty" msgpack:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty" msgpack:"lon,omitempty"`
}

// FieldUnit is one ground station as listed in a snapshot.
// Every attribute except FuID may be missing.
type FieldUnit struct {
	FuID       string      `json:"fu_id"`
	SensorData *SensorData `json:"sensor_data,omitempty"`
	GPS        *GPS        `json:"gps,omitempty"`
	Az         *float64    `json:"az,omitempty"`
	El         *float64    `json:"el,omitempty"`
	Satellite  string      `json:"satellite,omitempty"` // empty means unassigned
	Timestamp  *float64    `json:"timestamp,omitempty"`
}

// Temperature returns the reported temperature, if any.
func (u FieldUnit) Temperature() *float64 {
	if u.SensorData == nil {
		return nil
	}
	return u.SensorData.Temperature
}

// Humidity returns the reported humidity, if any.
func (u FieldUnit) Humidity() *float64 {
	if u.SensorData == nil {
		return nil
	}
	return u.SensorData.Humidity
}

// Lat returns the reported latitude, if any.
func (u FieldUnit) Lat() *float64 {
	if u.GPS == nil {
		return nil
	}
	return u.GPS.Lat
}

// Lon returns the reported longitude, if any.
func (u FieldUnit) Lon() *float64 {
	if u.GPS == nil {
		return nil
	}
	return u.GPS.Lon
}

// Float is a helper for building optional readings.
func Float(v float64) *float64 {
	return &v
}
