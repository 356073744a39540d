package models

// SnapshotPayload is the body of an inbound snapshot message.
type SnapshotPayload struct {
	Clients []FieldUnit `json:"clients"`
}
