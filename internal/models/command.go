package models

// SelectionIntent asks the upstream hub to point a field unit at a satellite.
// It is not authoritative until a later snapshot reports the new satellite.
type SelectionIntent struct {
	FuID          string `json:"fu_id"`
	SatelliteName string `json:"satellite_name"`
}
