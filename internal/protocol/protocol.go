package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event names shared with the frontend. These are the wire contract;
// renaming any of them breaks connected clients.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventCursorMove  = "cursor-move"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"

	EventRoomJoined       = "room-joined"
	EventUserCountUpdated = "user-count-updated"
	EventUserLeft         = "user-left"
	EventError            = "error"
)

// Persisted command type tags. Note that a clear-canvas event is stored
// with the shorter "clear" tag.
const (
	TypeDrawStart = "draw-start"
	TypeDrawMove  = "draw-move"
	TypeDrawEnd   = "draw-end"
	TypeClear     = "clear"
)

const (
	minRoomIDLength = 4
	maxRoomIDLength = 8
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals a payload and wraps it in an envelope, ready to write
// to a connection.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// NormalizeRoomID uppercases a client-supplied room ID and enforces the
// length constraint.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if len(id) < minRoomIDLength || len(id) > maxRoomIDLength {
		return "", fmt.Errorf("room ID must be %d-%d characters, got %d", minRoomIDLength, maxRoomIDLength, len(id))
	}
	return id, nil
}

// Point is a single coordinate on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Command is one drawing operation as stamped by the server. Each
// variant carries exactly the fields its type requires, so there is no
// conditional validation at runtime.
type Command interface {
	// Stamp assigns the server-side ingestion timestamp. Client-supplied
	// timestamps are never trusted.
	Stamp(t time.Time)
}

type DrawStart struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *DrawStart) Stamp(t time.Time) { c.Timestamp = t }

type DrawMove struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *DrawMove) Stamp(t time.Time) { c.Timestamp = t }

type DrawEnd struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Path      []Point   `json:"path"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *DrawEnd) Stamp(t time.Time) { c.Timestamp = t }

type Clear struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Clear) Stamp(t time.Time) { c.Timestamp = t }

// Inbound payload shapes. The server fills in userId, color (for
// cursors) and timestamp itself.

type DrawStartPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type DrawMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DrawEndPayload struct {
	Path  []Point `json:"path"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type CursorMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Outbound payload shapes.

type RoomJoined struct {
	RoomID  string            `json:"roomId"`
	History []json.RawMessage `json:"history"`
}

type CursorBroadcast struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
}
