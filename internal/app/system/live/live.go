// Package live streams a live query over a websocket: one snapshot frame,
// then every new event published on a bus subject, until the client leaves.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/system/events"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 64
)

// Item is one snapshot entry. ID is used to drop live events that the
// snapshot already contained.
type Item struct {
	ID    string
	Value any
}

// SnapshotFunc loads the current state of the query, in store order.
type SnapshotFunc func(ctx context.Context) ([]Item, error)

// Frame is the wire format sent to clients.
type Frame struct {
	Type  string          `json:"type"` // "snapshot" or "event"
	Items []any           `json:"items,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Streamer upgrades requests and pumps bus events to the socket.
type Streamer struct {
	Bus      events.Bus
	Log      *zap.Logger
	Upgrader websocket.Upgrader
}

// NewStreamer returns a Streamer. When allowedOrigins is empty the upgrader
// keeps gorilla's same-host origin check.
func NewStreamer(bus events.Bus, allowedOrigins []string, log *zap.Logger) *Streamer {
	s := &Streamer{Bus: bus, Log: log}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = struct{}{}
		}
		s.Upgrader.CheckOrigin = func(r *http.Request) bool {
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
	}
	return s
}

// Serve subscribes to subject before loading the snapshot so no event
// published in between is lost. The subscription is removed when the socket
// closes, the client is too slow, or the request context ends.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, subject string, snapshot SnapshotFunc) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", zap.Error(err), zap.String("path", r.URL.Path))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	queue := make(chan []byte, sendBuffer)
	overflow := make(chan struct{}, 1)
	sub, err := s.Bus.Subscribe(subject, func(_ string, data []byte) {
		select {
		case queue <- data:
		default:
			select {
			case overflow <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		s.Log.Error("live subscribe failed", zap.Error(err), zap.String("subject", subject))
		writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			s.Log.Warn("live unsubscribe failed", zap.Error(err), zap.String("subject", subject))
		}
	}()

	items, err := snapshot(ctx)
	if err != nil {
		s.Log.Error("live snapshot failed", zap.Error(err), zap.String("subject", subject))
		writeClose(conn, websocket.CloseInternalServerErr, "snapshot failed")
		return
	}
	seen := make(map[string]struct{}, len(items))
	values := make([]any, len(items))
	for i, it := range items {
		seen[it.ID] = struct{}{}
		values[i] = it.Value
	}
	if err := writeJSON(conn, Frame{Type: "snapshot", Items: values}); err != nil {
		return
	}

	go readPump(conn, cancel)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-overflow:
			s.Log.Warn("live client too slow, closing", zap.String("subject", subject))
			writeClose(conn, websocket.ClosePolicyViolation, "client too slow")
			return
		case data := <-queue:
			if len(seen) > 0 {
				if id := eventID(data); id != "" {
					if _, dup := seen[id]; dup {
						delete(seen, id)
						continue
					}
				}
			}
			if err := writeJSON(conn, Frame{Type: "event", Data: data}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and cancels when the socket closes.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

func eventID(data []byte) string {
	var envelope struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(data, &envelope) != nil {
		return ""
	}
	return envelope.ID
}
