package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "whiteboard-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func TestDatabaseCreation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Database should not be nil")
	}
}

func TestRoomOperations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.CreateRoom("ABCD")
	if err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}

	room, err := db.GetRoom("ABCD")
	if err != nil {
		t.Fatalf("Failed to get room: %v", err)
	}
	if room == nil {
		t.Fatal("Room should exist")
	}
	if room.ID != "ABCD" {
		t.Errorf("Expected room ID 'ABCD', got '%s'", room.ID)
	}
	if room.CreatedAt.IsZero() || room.LastActivity.IsZero() {
		t.Error("Room timestamps should be set")
	}

	// Get non-existent room
	room, err = db.GetRoom("NOPE")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room != nil {
		t.Error("Non-existent room should return nil")
	}
}

func TestCreateRoomKeepsHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.CreateRoom("ABCD"); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	if err := db.AppendCommand("ABCD", []byte(`{"type":"draw-start"}`)); err != nil {
		t.Fatalf("Failed to append command: %v", err)
	}

	before, _ := db.GetRoom("ABCD")
	time.Sleep(5 * time.Millisecond)

	// Create-or-touch: a second create must not wipe history, only
	// refresh last_activity.
	if err := db.CreateRoom("ABCD"); err != nil {
		t.Fatalf("Failed to re-create room: %v", err)
	}

	count, err := db.CountCommands("ABCD")
	if err != nil {
		t.Fatalf("Failed to count commands: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected history to survive re-create, got %d commands", count)
	}

	after, _ := db.GetRoom("ABCD")
	if !after.LastActivity.After(before.LastActivity) {
		t.Error("Re-create should refresh last_activity")
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("Re-create should not change created_at")
	}
}

func TestAppendAndHistoryOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	commands := []string{
		`{"type":"draw-start","x":1}`,
		`{"type":"draw-move","x":2}`,
		`{"type":"draw-end","x":3}`,
	}

	for _, cmd := range commands {
		if err := db.AppendCommand("ABCD", []byte(cmd)); err != nil {
			t.Fatalf("Failed to append command: %v", err)
		}
	}

	history, err := db.GetHistory("ABCD")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 commands, got %d", len(history))
	}
	for i, raw := range history {
		if string(raw) != commands[i] {
			t.Errorf("Command %d out of order: expected %s, got %s", i, commands[i], raw)
		}
	}
}

func TestHistoryEmptyForUnknownRoom(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	history, err := db.GetHistory("NOPE")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if history == nil {
		t.Error("History should be an empty slice, not nil")
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d commands", len(history))
	}
}

func TestReplaceHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		if err := db.AppendCommand("ABCD", []byte(`{"type":"draw-move"}`)); err != nil {
			t.Fatalf("Failed to append command: %v", err)
		}
	}

	clearCmd := `{"type":"clear","userId":"conn-a"}`
	if err := db.ReplaceHistory("ABCD", []byte(clearCmd)); err != nil {
		t.Fatalf("Failed to replace history: %v", err)
	}

	history, err := db.GetHistory("ABCD")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected exactly 1 command after clear, got %d", len(history))
	}
	if string(history[0]) != clearCmd {
		t.Errorf("Expected the clear command, got %s", history[0])
	}
}

func TestReplaceHistoryCreatesRoom(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.ReplaceHistory("FRESH", []byte(`{"type":"clear"}`)); err != nil {
		t.Fatalf("Failed to replace history for new room: %v", err)
	}

	room, err := db.GetRoom("FRESH")
	if err != nil {
		t.Fatalf("Failed to get room: %v", err)
	}
	if room == nil {
		t.Fatal("Clear on an unknown room should create it")
	}
}

func TestDeleteInactiveRooms(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.CreateRoom("OLDR"); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	if err := db.AppendCommand("OLDR", []byte(`{"type":"draw-start"}`)); err != nil {
		t.Fatalf("Failed to append command: %v", err)
	}

	// Cutoff in the past deletes nothing.
	deleted, err := db.DeleteInactiveRooms(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deletions with old cutoff, got %d", deleted)
	}

	// Cutoff in the future deletes the room and its history.
	deleted, err = db.DeleteInactiveRooms(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deletion, got %d", deleted)
	}

	room, _ := db.GetRoom("OLDR")
	if room != nil {
		t.Error("Swept room should be gone")
	}
	count, _ := db.CountCommands("OLDR")
	if count != 0 {
		t.Errorf("Swept room's history should be gone, got %d commands", count)
	}
}

func TestStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for _, id := range []string{"AAAA", "BBBB", "CCCC"} {
		if err := db.CreateRoom(id); err != nil {
			t.Fatalf("Failed to create room: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := db.AppendCommand("AAAA", []byte(`{"type":"draw-move"}`)); err != nil {
			t.Fatalf("Failed to append command: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats["room_count"].(int) != 3 {
		t.Errorf("Expected 3 rooms, got %v", stats["room_count"])
	}
	if stats["command_count"].(int) != 5 {
		t.Errorf("Expected 5 commands, got %v", stats["command_count"])
	}
}
