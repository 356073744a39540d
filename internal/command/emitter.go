// Package command turns operator selection intents into outbound
// push-channel messages.
package command

import (
	"context"
	"errors"

	"github.com/fu-tracker/dashboard/internal/channel"
	"github.com/fu-tracker/dashboard/internal/logging"
	"github.com/fu-tracker/dashboard/internal/models"
)

// ErrEmptyIntent is returned when either side of the intent is blank.
var ErrEmptyIntent = errors.New("selection intent requires fu_id and satellite_name")

// Sender writes one message to the push channel.
type Sender interface {
	Send(msg channel.Message) error
}

// Recorder observes emitted commands. It may be nil.
type Recorder interface {
	CommandEmitted(err error)
}

// Emitter sends select_satellite commands. It is fire-and-forget: nothing
// is awaited and a failed send is not retried.
type Emitter struct {
	sender   Sender
	recorder Recorder
	log      logging.Logger
}

// NewEmitter creates an emitter writing to sender.
func NewEmitter(sender Sender, recorder Recorder, log logging.Logger) *Emitter {
	if log == nil {
		log = logging.Noop()
	}
	return &Emitter{
		sender:   sender,
		recorder: recorder,
		log:      log.With(logging.Component("command")),
	}
}

// Emit sends a single selection command. Send errors are returned as-is.
func (e *Emitter) Emit(fuID, satelliteName string) error {
	if fuID == "" || satelliteName == "" {
		return ErrEmptyIntent
	}

	msg, err := channel.SelectSatellite(models.SelectionIntent{
		FuID:          fuID,
		SatelliteName: satelliteName,
	})
	if err == nil {
		err = e.sender.Send(msg)
	}

	if e.recorder != nil {
		e.recorder.CommandEmitted(err)
	}
	if err != nil {
		e.log.Warn(context.Background(), "selection command not sent",
			logging.String("fu_id", fuID), logging.String("satellite", satelliteName), logging.Err(err))
		return err
	}

	e.log.Info(context.Background(), "selection command sent",
		logging.String("fu_id", fuID), logging.String("satellite", satelliteName))
	return nil
}
