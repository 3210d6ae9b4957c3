package repository

import (
	"errors"

	"kiosk/internal/model"
)

// ErrNotFound is returned when an update or delete matches no row.
var ErrNotFound = errors.New("record not found")

// ClassRepository defines the interface for registration class operations.
type ClassRepository interface {
	// Create operations
	Insert(class *model.RegistrationClass) (int64, error)
	AddSample(sample *model.Sample) (int64, error)

	// Read operations
	GetByID(id int64) (*model.RegistrationClass, error)
	GetAll() ([]model.RegistrationClass, error)

	// Update operations
	UpdateLabel(id int64, label string) error

	// Delete operations
	Delete(id int64) error
	DeleteSample(classID, sampleID int64) error
	ClearSamples(classID, upToID int64) error
}

// EventRepository defines the interface for kiosk journal operations.
type EventRepository interface {
	InsertBatch(events []model.Event) error
	GetRecent(limit int) ([]model.Event, error)
	DeleteAll() error
}
