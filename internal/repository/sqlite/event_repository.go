package sqlite

import (
	"fmt"

	"kiosk/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite journal repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBatch adds multiple events in a single transaction.
func (r *EventRepository) InsertBatch(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO events (kind, message, student, shift, session_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Kind, e.Message, e.Student, e.Shift, e.SessionID, e.Timestamp); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	return tx.Commit()
}

// GetRecent returns up to limit events, newest first.
func (r *EventRepository) GetRecent(limit int) ([]model.Event, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, kind, message, student, shift, session_id, timestamp
		FROM events ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Message, &e.Student, &e.Shift, &e.SessionID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteAll removes every journal entry.
func (r *EventRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
