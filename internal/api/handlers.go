package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/db"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/protocol"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/ws"
)

type API struct {
	hub      *ws.Hub
	database *db.Database
}

func New(hub *ws.Hub, database *db.Database) *API {
	return &API{
		hub:      hub,
		database: database,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["total_rooms"] = dbStats["room_count"]
			stats["total_commands"] = dbStats["command_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type JoinRoomResponse struct {
	RoomID  string            `json:"roomId"`
	History []json.RawMessage `json:"history"`
}

type RoomInfoResponse struct {
	RoomID       string            `json:"roomId"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
	History      []json.RawMessage `json:"history"`
	ActiveUsers  int               `json:"activeUsers"`
}

// JoinRoomHandler validates and normalizes the room ID, creates the
// room if absent (touching last_activity either way), and returns the
// persisted history. Join never 404s: an unknown room is created.
func (a *API) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	roomID, err := protocol.NormalizeRoomID(req.RoomID)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid room ID")
		return
	}

	if err := a.database.CreateRoom(roomID); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to join room")
		return
	}

	history, err := a.database.GetHistory(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to load room history")
		return
	}

	jsonResponse(w, http.StatusOK, JoinRoomResponse{
		RoomID:  roomID,
		History: history,
	})
}

// GetRoomHandler returns a room's persisted record plus the live member
// count from the registry.
func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Extract room ID from path: /api/rooms/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	roomID := strings.ToUpper(strings.TrimSuffix(path, "/"))

	if roomID == "" {
		errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	room, err := a.database.GetRoom(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	if room == nil {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	history, err := a.database.GetHistory(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to load room history")
		return
	}

	jsonResponse(w, http.StatusOK, RoomInfoResponse{
		RoomID:       room.ID,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
		History:      history,
		ActiveUsers:  a.hub.Registry().MemberCount(roomID),
	})
}

func (a *API) RoomsRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms")

	// /api/rooms/join
	if path == "/join" {
		a.JoinRoomHandler(w, r)
		return
	}

	// /api/rooms/{id}
	if path != "" && path != "/" {
		a.GetRoomHandler(w, r)
		return
	}

	errorResponse(w, http.StatusNotFound, "Not found")
}
