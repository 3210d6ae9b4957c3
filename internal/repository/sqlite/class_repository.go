package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kiosk/internal/model"
	"kiosk/internal/repository"
)

// ClassRepository implements repository.ClassRepository for SQLite.
type ClassRepository struct {
	db *DB
}

// NewClassRepository creates a new SQLite class repository.
func NewClassRepository(db *DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Insert adds a new class. Samples on the argument are ignored.
func (r *ClassRepository) Insert(class *model.RegistrationClass) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO classes (label, created_at) VALUES (?, ?)
	`, class.Label, class.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert class: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	class.ID = id
	return id, nil
}

// GetByID retrieves a class with its samples. It returns nil when absent.
func (r *ClassRepository) GetByID(id int64) (*model.RegistrationClass, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var class model.RegistrationClass
	err := r.db.Conn().QueryRow(`
		SELECT id, label, created_at FROM classes WHERE id = ?
	`, id).Scan(&class.ID, &class.Label, &class.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	samples, err := r.samples("WHERE class_id = ?", id)
	if err != nil {
		return nil, err
	}
	class.Samples = samples[id]
	return &class, nil
}

// GetAll retrieves every class in creation order, samples included.
func (r *ClassRepository) GetAll() ([]model.RegistrationClass, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT id, label, created_at FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	classes := make([]model.RegistrationClass, 0)
	for rows.Next() {
		var class model.RegistrationClass
		if err := rows.Scan(&class.ID, &class.Label, &class.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	samples, err := r.samples("")
	if err != nil {
		return nil, err
	}
	for i := range classes {
		classes[i].Samples = samples[classes[i].ID]
	}
	return classes, nil
}

// samples loads samples grouped by class. Callers hold the lock.
func (r *ClassRepository) samples(where string, args ...interface{}) (map[int64][]model.Sample, error) {
	query := strings.TrimSpace(`SELECT id, class_id, data, mime_type, captured_at FROM samples ` + where + ` ORDER BY id`)
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]model.Sample)
	for rows.Next() {
		var s model.Sample
		if err := rows.Scan(&s.ID, &s.ClassID, &s.Data, &s.MimeType, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		result[s.ClassID] = append(result[s.ClassID], s)
	}
	return result, rows.Err()
}

// UpdateLabel renames a class.
func (r *ClassRepository) UpdateLabel(id int64, label string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE classes SET label = ? WHERE id = ?`, label, id)
	if err != nil {
		return fmt.Errorf("failed to update class: %w", err)
	}
	return expectRow(result)
}

// Delete removes a class and, through the foreign key, its samples.
func (r *ClassRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM classes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}
	return expectRow(result)
}

// AddSample appends a sample to its class.
func (r *ClassRepository) AddSample(sample *model.Sample) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO samples (class_id, data, mime_type, captured_at)
		VALUES (?, ?, ?, ?)
	`, sample.ClassID, sample.Data, sample.MimeType, sample.CapturedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	sample.ID = id
	return id, nil
}

// DeleteSample removes one sample of a class.
func (r *ClassRepository) DeleteSample(classID, sampleID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM samples WHERE id = ? AND class_id = ?`, sampleID, classID)
	if err != nil {
		return fmt.Errorf("failed to delete sample: %w", err)
	}
	return expectRow(result)
}

// ClearSamples removes the samples of a class with IDs up to upToID.
// Samples recorded later are kept.
func (r *ClassRepository) ClearSamples(classID, upToID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM samples WHERE class_id = ? AND id <= ?`, classID, upToID); err != nil {
		return fmt.Errorf("failed to clear samples: %w", err)
	}
	return nil
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
