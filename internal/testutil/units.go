package testutil

import "github.com/fu-tracker/dashboard/internal/models"

// Unit builds a field unit with only an id.
func Unit(id string) models.FieldUnit {
	return models.FieldUnit{FuID: id}
}

// Units builds bare field units for each id.
func Units(ids ...string) []models.FieldUnit {
	out := make([]models.FieldUnit, 0, len(ids))
	for _, id := range ids {
		out = append(out, Unit(id))
	}
	return out
}

// FullUnit builds a field unit with every attribute present.
func FullUnit(id, satellite string, temp, hum, lat, lon, az, el float64) models.FieldUnit {
	return models.FieldUnit{
		FuID:       id,
		SensorData: &models.SensorData{Temperature: models.Float(temp), Humidity: models.Float(hum)},
		GPS:        &models.GPS{Lat: models.Float(lat), Lon: models.Float(lon)},
		Az:         models.Float(az),
		El:         models.Float(el),
		Satellite:  satellite,
	}
}

// Catalog is the raw catalog list used across tests.
func Catalog() []any {
	return []any{"NOAA 15", "ISS", "NOAA 19", "METEOR-M2"}
}
