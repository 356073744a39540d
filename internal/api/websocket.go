package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/fu-tracker/dashboard/internal/channel"
	"github.com/fu-tracker/dashboard/internal/logging"
	"github.com/fu-tracker/dashboard/internal/models"
	"github.com/fu-tracker/dashboard/internal/view"
)

// View feed message types
const (
	// Browser -> Server messages
	MsgTypeSelectSatellite = channel.MsgTypeSelectSatellite
	MsgTypePing            = "ping"

	// Server -> Browser messages
	MsgTypeConnected = "connected"
	MsgTypeMutation  = "mutation"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the view feed envelope
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSAckResponse answers a browser selection
type WSAckResponse struct {
	FuID          string `json:"fu_id"`
	SatelliteName string `json:"satellite_name"`
	Emitted       bool   `json:"emitted"`
}

// WSErrorResponse reports a rejected browser message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ViewFeedHandlerImpl streams view mutations to browsers over WebSocket
type ViewFeedHandlerImpl struct {
	dash         Dashboard
	log          logging.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewViewFeedHandler creates a new view feed handler
func NewViewFeedHandler(dash Dashboard, log logging.Logger) ViewFeedHandler {
	if log == nil {
		log = logging.Noop()
	}
	return &ViewFeedHandlerImpl{
		dash: dash,
		log:  log.With(logging.Component("view-feed")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Operator consoles may be served from another origin
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		writeTimeout: 10 * time.Second,
	}
}

// feedConn serialises writes; gorilla allows one concurrent writer.
type feedConn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

func (f *feedConn) send(msgType string, id string, payload interface{}) error {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeout > 0 {
		_ = f.ws.SetWriteDeadline(time.Now().Add(f.timeout))
	}
	return f.ws.WriteJSON(msg)
}

// HandleViewFeed upgrades the connection, sends the current view as create
// mutations and then forwards live mutations until either side goes away.
func (h *ViewFeedHandlerImpl) HandleViewFeed(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn := &feedConn{ws: ws, timeout: h.writeTimeout}

	sub, initial, err := h.dash.Subscribe(ctx)
	if err != nil {
		_ = conn.send(MsgTypeError, "", WSErrorResponse{Message: "dashboard unavailable", Code: "UNAVAILABLE"})
		return nil
	}
	defer h.dash.Unsubscribe(sub)

	h.log.Info(ctx, "view subscriber connected", logging.String("subscriber", sub.ID))

	if err := conn.send(MsgTypeConnected, sub.ID, nil); err != nil {
		return nil
	}
	for _, m := range initial {
		if err := conn.send(MsgTypeMutation, "", m); err != nil {
			return nil
		}
	}

	go h.forward(conn, sub.C())

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(ctx, "view feed read failed", logging.String("subscriber", sub.ID), logging.Err(err))
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			_ = conn.send(MsgTypePong, msg.ID, nil)
		case MsgTypeSelectSatellite:
			h.handleSelect(ctx, conn, msg)
		default:
			_ = conn.send(MsgTypeError, msg.ID, WSErrorResponse{Message: "Unknown message type: " + msg.Type, Code: "INVALID_TYPE"})
		}
	}

	h.log.Info(ctx, "view subscriber disconnected", logging.String("subscriber", sub.ID))
	return nil
}

// forward drains the subscription. When the dashboard drops the subscriber
// the channel closes and so does the socket, prompting a reconnect.
func (h *ViewFeedHandlerImpl) forward(conn *feedConn, mutations <-chan view.Mutation) {
	for m := range mutations {
		if err := conn.send(MsgTypeMutation, "", m); err != nil {
			break
		}
	}
	conn.ws.Close()
}

func (h *ViewFeedHandlerImpl) handleSelect(ctx context.Context, conn *feedConn, msg WSMessage) {
	var intent models.SelectionIntent
	if err := json.Unmarshal(msg.Payload, &intent); err != nil {
		_ = conn.send(MsgTypeError, msg.ID, WSErrorResponse{Message: "Invalid select payload: " + err.Error(), Code: "INVALID_PAYLOAD"})
		return
	}
	if intent.FuID == "" {
		_ = conn.send(MsgTypeError, msg.ID, WSErrorResponse{Message: "fu_id is required", Code: "VALIDATION_ERROR"})
		return
	}

	satellite := strings.TrimSpace(intent.SatelliteName)
	emitted, err := h.dash.Select(ctx, intent.FuID, satellite)
	if err != nil {
		apiErr := selectionError(intent.FuID, err)
		_ = conn.send(MsgTypeError, msg.ID, WSErrorResponse{Message: apiErr.Message, Code: apiErr.Code})
		return
	}
	_ = conn.send(MsgTypeAck, msg.ID, WSAckResponse{
		FuID:          intent.FuID,
		SatelliteName: satellite,
		Emitted:       emitted,
	})
}
