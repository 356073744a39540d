// fake_sender.go - In-memory push channel for testing
package testutil

import (
	"encoding/json"
	"sync"

	"github.com/fu-tracker/dashboard/internal/channel"
	"github.com/fu-tracker/dashboard/internal/models"
)

// FakeSender implements command.Sender and records every message.
type FakeSender struct {
	mu   sync.Mutex
	sent []channel.Message
	err  error
}

// NewFakeSender creates a sender that accepts everything.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// FailWith makes subsequent sends fail with err. Pass nil to recover.
func (f *FakeSender) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeSender) Send(msg channel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (f *FakeSender) Messages() []channel.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]channel.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// Intents decodes every sent select_satellite payload.
func (f *FakeSender) Intents() []models.SelectionIntent {
	var out []models.SelectionIntent
	for _, msg := range f.Messages() {
		if msg.Type != channel.MsgTypeSelectSatellite {
			continue
		}
		var intent models.SelectionIntent
		if err := json.Unmarshal(msg.Payload, &intent); err == nil {
			out = append(out, intent)
		}
	}
	return out
}
