package storage

import (
	"context"
	"sync"
	"time"

	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/repository"
)

const (
	// DefaultBufferLimit caps how many events are held before an early flush.
	DefaultBufferLimit = 50
	// DefaultFlushInterval defines how often buffered events are written.
	DefaultFlushInterval = 30 * time.Second
)

// JournalService buffers kiosk events in memory and periodically flushes them
// to the event repository.
type JournalService struct {
	events        []model.Event
	bufferLimit   int
	flushInterval time.Duration
	flushNow      chan struct{}
	mu            sync.Mutex
	logger        *logger.Logger
	eventRepo     repository.EventRepository
}

// NewJournalService creates a journal. Non-positive limits use the defaults.
func NewJournalService(eventRepo repository.EventRepository, bufferLimit int, flushInterval time.Duration, logger *logger.Logger) *JournalService {
	if bufferLimit <= 0 {
		bufferLimit = DefaultBufferLimit
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &JournalService{
		events:        make([]model.Event, 0, bufferLimit),
		bufferLimit:   bufferLimit,
		flushInterval: flushInterval,
		flushNow:      make(chan struct{}, 1),
		logger:        logger,
		eventRepo:     eventRepo,
	}
}

// Run flushes on a ticker, or early when the buffer fills, until ctx is done.
// Whatever is still buffered is written before Run returns.
func (s *JournalService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		case <-s.flushNow:
			s.Flush()
		}
	}
}

// Record appends an event to the buffer.
func (s *JournalService) Record(event model.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	full := len(s.events) >= s.bufferLimit
	s.mu.Unlock()

	if full {
		select {
		case s.flushNow <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of buffered events.
func (s *JournalService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Flush writes buffered events to the repository. On failure the events stay
// buffered for the next flush.
func (s *JournalService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return
	}

	if err := s.eventRepo.InsertBatch(s.events); err != nil {
		s.logger.Error("Error saving %d journal events: %v", len(s.events), err)
		return
	}

	s.logger.Info("Flushed %d journal events", len(s.events))
	s.events = s.events[:0] // Clear buffer
}

// Recent flushes pending events and returns the newest limit entries.
func (s *JournalService) Recent(limit int) ([]model.Event, error) {
	s.Flush()
	return s.eventRepo.GetRecent(limit)
}
