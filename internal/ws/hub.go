package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/db"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/protocol"
)

const persistQueueSize = 1024

// Hub routes drawing events between the live member set and the command
// log. Membership lives in the Registry; the Hub owns fan-out and the
// persistence side effect.
type Hub struct {
	registry *Registry
	database *db.Database
	persist  chan persistJob
}

type persistJob struct {
	roomID string
	event  string
	raw    []byte
}

func NewHub(database *db.Database) *Hub {
	return &Hub{
		registry: NewRegistry(),
		database: database,
		persist:  make(chan persistJob, persistQueueSize),
	}
}

// Run drains the persistence queue. All writes go through this single
// goroutine in enqueue order, so one sender's stream lands in arrival
// order, a clear's replacement can never be trailed by an earlier
// append, and writers never contend on the store.
func (h *Hub) Run() {
	for job := range h.persist {
		h.applyPersist(job)
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Route stamps an inbound drawing command, fans it out to every other
// member of the room, and persists it. Broadcast and persistence are
// independent side effects: a failed append never rolls back frames
// already delivered, it only leaves a gap in the replayable history.
func (h *Hub) Route(roomID, senderID, event string, command protocol.Command) {
	command.Stamp(time.Now().UTC())

	raw, err := json.Marshal(command)
	if err != nil {
		log.Printf("Failed to encode %s for room %s: %v", event, roomID, err)
		return
	}

	frame, err := json.Marshal(protocol.Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("Failed to frame %s for room %s: %v", event, roomID, err)
		return
	}

	h.Fanout(roomID, senderID, frame)

	select {
	case h.persist <- persistJob{roomID: roomID, event: event, raw: raw}:
	default:
		log.Printf("Persistence queue full, dropping %s for room %s", event, roomID)
	}
}

// Fanout delivers a frame to every member of a room except the sender.
// Delivery is best-effort per recipient: a slow consumer loses the
// frame, the rest still get it.
func (h *Hub) Fanout(roomID, senderID string, frame []byte) {
	for _, member := range h.registry.MembersExcluding(roomID, senderID) {
		if !member.Send(frame) {
			log.Printf("Dropped frame for slow client %s in room %s", member.id, roomID)
		}
	}
}

// NotifyCount broadcasts the current member count to everyone in the
// room, the triggering connection included.
func (h *Hub) NotifyCount(roomID string, count int) {
	frame, err := protocol.Encode(protocol.EventUserCountUpdated, count)
	if err != nil {
		log.Printf("Failed to encode user count for room %s: %v", roomID, err)
		return
	}
	h.Fanout(roomID, "", frame)
}

// NotifyUserLeft tells the remaining members which connection left.
func (h *Hub) NotifyUserLeft(roomID, connectionID string) {
	frame, err := protocol.Encode(protocol.EventUserLeft, connectionID)
	if err != nil {
		log.Printf("Failed to encode user-left for room %s: %v", roomID, err)
		return
	}
	h.Fanout(roomID, connectionID, frame)
}

func (h *Hub) applyPersist(job persistJob) {
	var err error
	if job.event == protocol.EventClearCanvas {
		// A clear invalidates everything before it, so the history is
		// compacted down to the clear itself instead of appending.
		err = h.database.ReplaceHistory(job.roomID, job.raw)
	} else {
		err = h.database.AppendCommand(job.roomID, job.raw)
	}
	if err != nil {
		log.Printf("Failed to persist %s for room %s: %v", job.event, job.roomID, err)
	}
}

// Stats accessors used by the HTTP API.

func (h *Hub) GetRoomCount() int {
	return h.registry.RoomCount()
}

func (h *Hub) GetClientCount() int {
	return h.registry.ClientCount()
}

func (h *Hub) GetActiveRooms() map[string]int {
	return h.registry.ActiveRooms()
}
