package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/protocol"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/ratelimit"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 256 * 1024
	sendBufferSize    = 256
	messagesPerSecond = 100
	messageBurst      = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live connection and its session state. Inbound events
// are handled on the read pump goroutine, so a single connection's
// stream is processed strictly in arrival order.
//
// A session is bound to at most one room at a time. Binding while
// already bound leaves the previous room first.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	id          string
	color       string
	rateLimiter *ratelimit.Limiter
	cursor      *cursorThrottle

	// roomMu guards room: the read pump writes it, the cursor timer
	// goroutine reads it.
	roomMu sync.Mutex
	room   string
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		id:          uuid.NewString(),
		rateLimiter: ratelimit.NewLimiter(messagesPerSecond, messageBurst),
	}
	client.color = UserColor(client.id)
	client.cursor = newCursorThrottle(client.broadcastCursor)

	log.Printf("Client connected: %s", client.id)

	go client.writePump()
	go client.readPump()
}

// Send queues a frame for delivery. Returns false if the client's
// buffer is full; the frame is dropped rather than blocking the caller.
func (c *Client) Send(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) currentRoom() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.room
}

func (c *Client) setRoom(roomID string) {
	c.roomMu.Lock()
	c.room = roomID
	c.roomMu.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.cursor.Stop()
		c.leaveCurrentRoom()
		close(c.done)
		c.conn.Close()
		log.Printf("Client disconnected: %s", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !c.rateLimiter.Allow() {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Invalid frame from client %s: %v", c.id, err)
			continue
		}

		c.dispatch(env)
	}
}

func (c *Client) dispatch(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoinRoom:
		var roomID string
		if err := json.Unmarshal(env.Data, &roomID); err != nil {
			c.sendError("Failed to join room")
			return
		}
		c.handleJoin(roomID)

	case protocol.EventLeaveRoom:
		c.leaveCurrentRoom()

	case protocol.EventCursorMove:
		var p protocol.CursorMovePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.handleCursorMove(p)

	case protocol.EventDrawStart, protocol.EventDrawMove, protocol.EventDrawEnd, protocol.EventClearCanvas:
		c.handleDrawing(env)

	default:
		log.Printf("Unknown event %q from client %s", env.Event, c.id)
	}
}

// handleJoin binds the session to a room: implicit leave of any prior
// room, create-or-touch of the persisted record, registration, history
// replay to the joiner only, then a member count broadcast to the whole
// room including the joiner.
func (c *Client) handleJoin(raw string) {
	roomID, err := protocol.NormalizeRoomID(raw)
	if err != nil {
		log.Printf("Client %s join rejected: %v", c.id, err)
		c.sendError("Failed to join room")
		return
	}

	c.leaveCurrentRoom()

	// Register before reading history so no event can slip between the
	// replay snapshot and live fan-out; an event routed during the read
	// may show up in both, which the canvas tolerates, but never in
	// neither.
	count := c.hub.registry.Join(roomID, c)
	c.setRoom(roomID)

	if err := c.hub.database.CreateRoom(roomID); err != nil {
		log.Printf("Failed to create room %s: %v", roomID, err)
		c.sendError("Failed to join room")
		return
	}

	history, err := c.hub.database.GetHistory(roomID)
	if err != nil {
		log.Printf("Failed to load history for room %s: %v", roomID, err)
		c.sendError("Failed to join room")
		return
	}

	c.sendEvent(protocol.EventRoomJoined, protocol.RoomJoined{
		RoomID:  roomID,
		History: history,
	})
	c.hub.NotifyCount(roomID, count)

	log.Printf("Client %s joined room %s (total: %d)", c.id, roomID, count)
}

// leaveCurrentRoom deregisters the session from its room, if any, and
// notifies the remaining members. If the room becomes empty there is no
// one left to notify and the registry entry is simply dropped. Safe to
// call while unbound.
func (c *Client) leaveCurrentRoom() {
	c.roomMu.Lock()
	roomID := c.room
	c.room = ""
	c.roomMu.Unlock()
	if roomID == "" {
		return
	}

	remaining := c.hub.registry.Leave(roomID, c)
	if remaining > 0 {
		c.hub.NotifyCount(roomID, remaining)
		c.hub.NotifyUserLeft(roomID, c.id)
	}

	log.Printf("Client %s left room %s (remaining: %d)", c.id, roomID, remaining)
}

// handleCursorMove coalesces cursor positions through the throttle.
// Dropped silently while unbound.
func (c *Client) handleCursorMove(p protocol.CursorMovePayload) {
	if c.currentRoom() == "" {
		return
	}
	c.cursor.Move(p.X, p.Y)
}

// broadcastCursor is the throttle's fire callback. It runs on the timer
// goroutine, so it re-reads the bound room: if the session left the
// room since the timer was armed, the update is stale and dropped.
func (c *Client) broadcastCursor(x, y float64) {
	roomID := c.currentRoom()
	if roomID == "" {
		return
	}

	frame, err := protocol.Encode(protocol.EventCursorMove, protocol.CursorBroadcast{
		UserID: c.id,
		X:      x,
		Y:      y,
		Color:  c.color,
	})
	if err != nil {
		log.Printf("Failed to encode cursor for client %s: %v", c.id, err)
		return
	}
	c.hub.Fanout(roomID, c.id, frame)
}

// handleDrawing turns an inbound drawing payload into a stamped command
// and hands it to the router. Drawing events from unbound sessions are
// silently dropped; clients are expected not to send them before a
// successful join and the server does not error on violation.
func (c *Client) handleDrawing(env protocol.Envelope) {
	roomID := c.currentRoom()
	if roomID == "" {
		return
	}

	var command protocol.Command
	switch env.Event {
	case protocol.EventDrawStart:
		var p protocol.DrawStartPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Printf("Invalid %s payload from client %s: %v", env.Event, c.id, err)
			return
		}
		command = &protocol.DrawStart{
			Type:   protocol.TypeDrawStart,
			UserID: c.id,
			X:      p.X,
			Y:      p.Y,
			Color:  p.Color,
			Width:  p.Width,
		}

	case protocol.EventDrawMove:
		var p protocol.DrawMovePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Printf("Invalid %s payload from client %s: %v", env.Event, c.id, err)
			return
		}
		command = &protocol.DrawMove{
			Type:   protocol.TypeDrawMove,
			UserID: c.id,
			X:      p.X,
			Y:      p.Y,
		}

	case protocol.EventDrawEnd:
		var p protocol.DrawEndPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Printf("Invalid %s payload from client %s: %v", env.Event, c.id, err)
			return
		}
		command = &protocol.DrawEnd{
			Type:   protocol.TypeDrawEnd,
			UserID: c.id,
			Path:   p.Path,
			Color:  p.Color,
			Width:  p.Width,
		}

	case protocol.EventClearCanvas:
		command = &protocol.Clear{
			Type:   protocol.TypeClear,
			UserID: c.id,
		}
	}

	c.hub.Route(roomID, c.id, env.Event, command)
}

func (c *Client) sendEvent(event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		log.Printf("Failed to encode %s for client %s: %v", event, c.id, err)
		return
	}
	if !c.Send(frame) {
		log.Printf("Dropped %s for slow client %s", event, c.id)
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent(protocol.EventError, message)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
