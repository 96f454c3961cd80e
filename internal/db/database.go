package db

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

type Room struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	// Wait for the lock instead of failing with SQLITE_BUSY when a
	// write lands while another is in flight.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	// Timestamps are stored as unix milliseconds so the retention sweep
	// can compare them without caring about text formats.
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_last_activity ON rooms(last_activity);

	CREATE TABLE IF NOT EXISTS drawing_commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		command TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_drawing_commands_room_id ON drawing_commands(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Room operations

// CreateRoom inserts the room if it does not exist yet and refreshes
// last_activity either way. Existing history is never touched.
func (d *Database) CreateRoom(id string) error {
	now := time.Now().UTC().UnixMilli()
	_, err := d.db.Exec(
		"INSERT OR IGNORE INTO rooms (id, created_at, last_activity) VALUES (?, ?, ?)",
		id, now, now,
	)
	if err != nil {
		return err
	}
	return d.TouchRoom(id)
}

func (d *Database) GetRoom(id string) (*Room, error) {
	row := d.db.QueryRow(
		"SELECT id, created_at, last_activity FROM rooms WHERE id = ?",
		id,
	)

	var room Room
	var createdAt, lastActivity int64
	err := row.Scan(&room.ID, &createdAt, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	room.CreatedAt = time.UnixMilli(createdAt).UTC()
	room.LastActivity = time.UnixMilli(lastActivity).UTC()
	return &room, nil
}

func (d *Database) TouchRoom(id string) error {
	_, err := d.db.Exec(
		"UPDATE rooms SET last_activity = ? WHERE id = ?",
		time.Now().UTC().UnixMilli(), id,
	)
	return err
}

// Command log operations

// AppendCommand adds one command to the end of a room's history and
// refreshes last_activity. The room row is created if missing so that an
// append racing with room teardown still lands somewhere replayable.
func (d *Database) AppendCommand(roomID string, command []byte) error {
	if err := d.CreateRoom(roomID); err != nil {
		return err
	}

	_, err := d.db.Exec(
		"INSERT INTO drawing_commands (room_id, command, created_at) VALUES (?, ?, ?)",
		roomID, string(command), time.Now().UTC().UnixMilli(),
	)
	return err
}

// ReplaceHistory atomically drops a room's entire history and replaces
// it with the single given command. Used for clear-canvas: everything
// before a clear is invisible to late joiners anyway, so keeping it
// would only grow the log.
func (d *Database) ReplaceHistory(roomID string, command []byte) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO rooms (id, created_at, last_activity) VALUES (?, ?, ?)",
		roomID, now, now,
	); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM drawing_commands WHERE room_id = ?", roomID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO drawing_commands (room_id, command, created_at) VALUES (?, ?, ?)",
		roomID, string(command), now,
	); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE rooms SET last_activity = ? WHERE id = ?", now, roomID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetHistory returns a room's commands in append order. The order is
// the authoritative replay order for new joiners.
func (d *Database) GetHistory(roomID string) ([]json.RawMessage, error) {
	rows, err := d.db.Query(
		"SELECT command FROM drawing_commands WHERE room_id = ? ORDER BY id ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]json.RawMessage, 0)
	for rows.Next() {
		var command string
		if err := rows.Scan(&command); err != nil {
			return nil, err
		}
		history = append(history, json.RawMessage(command))
	}
	return history, rows.Err()
}

func (d *Database) CountCommands(roomID string) (int, error) {
	var count int
	err := d.db.QueryRow(
		"SELECT COUNT(*) FROM drawing_commands WHERE room_id = ?",
		roomID,
	).Scan(&count)
	return count, err
}

// Retention

// DeleteInactiveRooms removes every room whose last_activity is older
// than cutoff, along with its history. Returns the number of rooms
// deleted.
func (d *Database) DeleteInactiveRooms(cutoff time.Time) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cutoffMillis := cutoff.UTC().UnixMilli()
	if _, err := tx.Exec(
		"DELETE FROM drawing_commands WHERE room_id IN (SELECT id FROM rooms WHERE last_activity < ?)",
		cutoffMillis,
	); err != nil {
		return 0, err
	}

	result, err := tx.Exec("DELETE FROM rooms WHERE last_activity < ?", cutoffMillis)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return deleted, tx.Commit()
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var commandCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM drawing_commands").Scan(&commandCount); err != nil {
		return nil, err
	}
	stats["command_count"] = commandCount

	return stats, nil
}
