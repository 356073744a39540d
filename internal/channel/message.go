// Package channel is the push-channel boundary between the dashboard and the
// upstream hub: the message envelope, the typed inbound variants and a
// websocket client.
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fu-tracker/dashboard/internal/models"
)

// Message types on the upstream channel.
const (
	// Hub -> dashboard
	MsgTypeSnapshot     = "snapshot"
	MsgTypeClientUpdate = "client_data_update" // legacy name for snapshot
	MsgTypeLog          = "log"

	// Dashboard -> hub
	MsgTypeSelectSatellite = "select_satellite"
)

// ErrUnknownMessage is returned by Decode for message types outside the
// inbound set.
var ErrUnknownMessage = errors.New("unknown message type")

// ErrMissingClients is returned for a snapshot frame without a client list.
var ErrMissingClients = errors.New("snapshot has no clients list")

// Message is the envelope for every frame on the channel.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Inbound is one of the typed messages the hub can send.
type Inbound interface {
	inbound()
}

// Snapshot lists every field unit currently known to the hub.
type Snapshot struct {
	Clients []models.FieldUnit
}

// LogLine is an operator-visible text line.
type LogLine struct {
	Text string
}

func (Snapshot) inbound() {}
func (LogLine) inbound()  {}

// Decode maps an envelope onto its inbound variant.
func Decode(msg Message) (Inbound, error) {
	switch msg.Type {
	case MsgTypeSnapshot, MsgTypeClientUpdate:
		// An explicit empty list clears the view; a missing or null one
		// leaves Clients nil and is rejected.
		var payload models.SnapshotPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return nil, fmt.Errorf("decoding %s payload: %w", msg.Type, err)
			}
		}
		if payload.Clients == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingClients, msg.Type)
		}
		return Snapshot{Clients: payload.Clients}, nil

	case MsgTypeLog:
		text, err := decodeLogText(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("decoding log payload: %w", err)
		}
		return LogLine{Text: text}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// decodeLogText accepts either a bare JSON string or {"message": "..."}.
func decodeLogText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return obj.Message, nil
}

// NewMessage builds an envelope with a JSON encoded payload.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encoding %s payload: %w", msgType, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// SelectSatellite builds the outbound selection command.
func SelectSatellite(intent models.SelectionIntent) (Message, error) {
	return NewMessage(MsgTypeSelectSatellite, intent)
}
