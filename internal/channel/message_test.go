package channel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fu-tracker/dashboard/internal/models"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		want    Inbound
		wantErr bool
	}{
		{
			name: "snapshot",
			msg: Message{
				Type:    MsgTypeSnapshot,
				Payload: json.RawMessage(`{"clients":[{"fu_id":"A","az":10,"sensor_data":{"temperature":21.5}}]}`),
			},
			want: Snapshot{Clients: []models.FieldUnit{{
				FuID:       "A",
				Az:         models.Float(10),
				SensorData: &models.SensorData{Temperature: models.Float(21.5)},
			}}},
		},
		{
			name: "legacy snapshot name",
			msg: Message{
				Type:    MsgTypeClientUpdate,
				Payload: json.RawMessage(`{"clients":[]}`),
			},
			want: Snapshot{Clients: []models.FieldUnit{}},
		},
		{
			name:    "snapshot without payload",
			msg:     Message{Type: MsgTypeSnapshot},
			wantErr: true,
		},
		{
			name:    "snapshot with empty object",
			msg:     Message{Type: MsgTypeSnapshot, Payload: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "snapshot with null clients",
			msg:     Message{Type: MsgTypeClientUpdate, Payload: json.RawMessage(`{"clients":null}`)},
			wantErr: true,
		},
		{
			name:    "snapshot under wrong key",
			msg:     Message{Type: MsgTypeSnapshot, Payload: json.RawMessage(`{"units":[{"fu_id":"A"}]}`)},
			wantErr: true,
		},
		{
			name: "log as string",
			msg:  Message{Type: MsgTypeLog, Payload: json.RawMessage(`"[12:00:00] FU-1 selected ISS"`)},
			want: LogLine{Text: "[12:00:00] FU-1 selected ISS"},
		},
		{
			name: "log as object",
			msg:  Message{Type: MsgTypeLog, Payload: json.RawMessage(`{"message":"hello"}`)},
			want: LogLine{Text: "hello"},
		},
		{
			name:    "malformed snapshot",
			msg:     Message{Type: MsgTypeSnapshot, Payload: json.RawMessage(`{"clients":"nope"}`)},
			wantErr: true,
		},
		{
			name:    "unknown type",
			msg:     Message{Type: "az_el_command"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_UnknownTypeSentinel(t *testing.T) {
	_, err := Decode(Message{Type: "poll_az_el"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestDecode_MissingClientsSentinel(t *testing.T) {
	for _, payload := range []string{"", `{}`, `{"clients":null}`} {
		_, err := Decode(Message{Type: MsgTypeSnapshot, Payload: json.RawMessage(payload)})
		assert.ErrorIs(t, err, ErrMissingClients, "payload %q", payload)
	}

	got, err := Decode(Message{Type: MsgTypeSnapshot, Payload: json.RawMessage(`{"clients":[]}`)})
	require.NoError(t, err)
	assert.Empty(t, got.(Snapshot).Clients)
}

func TestSelectSatellite(t *testing.T) {
	msg, err := SelectSatellite(models.SelectionIntent{FuID: "A", SatelliteName: "ISS"})
	require.NoError(t, err)

	assert.Equal(t, MsgTypeSelectSatellite, msg.Type)
	assert.JSONEq(t, `{"fu_id":"A","satellite_name":"ISS"}`, string(msg.Payload))
	assert.NotZero(t, msg.Timestamp)
}
