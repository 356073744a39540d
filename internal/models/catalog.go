package models

// CatalogEntry is one selectable satellite name.
type CatalogEntry struct {
	Name string `json:"name" msgpack:"name"`
}
