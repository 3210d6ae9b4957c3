// Package registration manages labelled sample classes recorded from the
// camera and uploads them to the backend as new students.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"kiosk/internal/backend"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/repository"
	"kiosk/internal/task"
)

var (
	// ErrNothingToTrain is returned when no class has both a label and samples.
	ErrNothingToTrain = errors.New("add at least one class with images and a name")
	// ErrCameraInactive is returned when recording is requested without a live camera.
	ErrCameraInactive = errors.New("camera is not active")
	// ErrClassNotFound is returned for unknown class IDs.
	ErrClassNotFound = errors.New("class not found")
	// ErrNoSamples is returned when registering a class without images.
	ErrNoSamples = errors.New("class has no images")
	// ErrNameRequired is returned when a student would be registered without a name.
	ErrNameRequired = errors.New("student name is required")
)

// FrameSource is the live camera. Context is cancelled when the camera stops.
type FrameSource interface {
	Snapshot() (model.Frame, error)
	Active() bool
	Context() context.Context
}

type Encoder interface {
	Encode(frame model.Frame) (model.FrameSample, error)
}

type Uploader interface {
	RegisterStudent(ctx context.Context, reg backend.Registration) (*backend.RegistrationResult, error)
}

type Journal interface {
	Record(event model.Event)
}

// TrainResult is the outcome of uploading one class.
type TrainResult struct {
	ClassID   int64  `json:"class_id"`
	Label     string `json:"label"`
	StudentID string `json:"student_id"`
	Samples   int    `json:"samples"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
}

// Progress is called after every class upload with the 1-based position.
type Progress func(done, total int, result TrainResult)

// Registrar owns registration classes and their recording loops.
type Registrar struct {
	classes  repository.ClassRepository
	source   FrameSource
	encoder  Encoder
	uploader Uploader
	journal  Journal
	interval time.Duration
	logger   *logger.Logger

	mu        sync.Mutex
	recording map[int64]*task.Task

	now func() time.Time
}

// NewRegistrar creates a registrar. source may be nil for offline use (CLI),
// in which case recording is unavailable. journal may be nil.
func NewRegistrar(classes repository.ClassRepository, source FrameSource, encoder Encoder, uploader Uploader, journal Journal, interval time.Duration, logger *logger.Logger) *Registrar {
	return &Registrar{
		classes:   classes,
		source:    source,
		encoder:   encoder,
		uploader:  uploader,
		journal:   journal,
		interval:  interval,
		logger:    logger,
		recording: make(map[int64]*task.Task),
		now:       time.Now,
	}
}

// AddClass creates an empty class.
func (r *Registrar) AddClass(label string) (*model.RegistrationClass, error) {
	class := &model.RegistrationClass{Label: strings.TrimSpace(label), CreatedAt: r.now()}
	if _, err := r.classes.Insert(class); err != nil {
		return nil, err
	}
	class.Samples = []model.Sample{}
	return class, nil
}

func (r *Registrar) RenameClass(id int64, label string) error {
	return notFound(r.classes.UpdateLabel(id, strings.TrimSpace(label)))
}

// RemoveClass stops any recording for the class and deletes it with its samples.
func (r *Registrar) RemoveClass(id int64) error {
	r.StopRecording(id)
	return notFound(r.classes.Delete(id))
}

func (r *Registrar) RemoveSample(classID, sampleID int64) error {
	return notFound(r.classes.DeleteSample(classID, sampleID))
}

// Classes returns every class with its samples.
func (r *Registrar) Classes() ([]model.RegistrationClass, error) {
	return r.classes.GetAll()
}

// Class returns one class with its samples.
func (r *Registrar) Class(id int64) (*model.RegistrationClass, error) {
	class, err := r.classes.GetByID(id)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	return class, nil
}

// StartRecording captures a sample right away and then every interval until
// StopRecording or the camera stops. Starting an already recording class is a
// no-op.
func (r *Registrar) StartRecording(ctx context.Context, classID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.source == nil || !r.source.Active() {
		return ErrCameraInactive
	}
	camCtx := r.source.Context()
	if camCtx == nil {
		return ErrCameraInactive
	}
	if _, err := r.Class(classID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live(classID); ok {
		return nil
	}

	if err := r.recordOne(classID); err != nil {
		return err
	}

	name := fmt.Sprintf("record-%d", classID)
	r.recording[classID] = task.Every(camCtx, name, r.interval, func(ctx context.Context) {
		if err := r.recordOne(classID); err != nil {
			r.logger.Warning("Recording sample for class %d failed: %v", classID, err)
		}
	})
	r.logger.Info("Recording started for class %d", classID)
	return nil
}

// StopRecording stops the class's recording loop. It reports whether one was running.
func (r *Registrar) StopRecording(classID int64) bool {
	r.mu.Lock()
	t, ok := r.recording[classID]
	delete(r.recording, classID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	t.Cancel()
	r.logger.Info("Recording stopped for class %d", classID)
	return true
}

// Recording reports whether the class is being recorded.
func (r *Registrar) Recording(classID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live(classID)
	return ok
}

// live returns the recording task of a class, forgetting tasks that ended
// with the camera. Callers hold r.mu.
func (r *Registrar) live(classID int64) (*task.Task, bool) {
	t, ok := r.recording[classID]
	if !ok {
		return nil, false
	}
	select {
	case <-t.Done():
		delete(r.recording, classID)
		return nil, false
	default:
		return t, true
	}
}

// StopAll stops every recording loop.
func (r *Registrar) StopAll() {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.recording))
	for id := range r.recording {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.StopRecording(id)
	}
}

func (r *Registrar) recordOne(classID int64) error {
	frame, err := r.source.Snapshot()
	if err != nil {
		return err
	}
	sample, err := r.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	_, err = r.classes.AddSample(&model.Sample{
		ClassID:     classID,
		FrameSample: sample,
		CapturedAt:  frame.CapturedAt,
	})
	return err
}

// Train uploads every class that has a label and at least one sample, one at
// a time. Classes that upload successfully lose the uploaded samples; failed
// ones keep them so the upload can be retried.
func (r *Registrar) Train(ctx context.Context, progress Progress) ([]TrainResult, error) {
	all, err := r.classes.GetAll()
	if err != nil {
		return nil, err
	}

	var ready []model.RegistrationClass
	for _, c := range all {
		c.Label = strings.TrimSpace(c.Label)
		if c.Ready() {
			ready = append(ready, c)
		}
	}
	if len(ready) == 0 {
		return nil, ErrNothingToTrain
	}

	results := make([]TrainResult, 0, len(ready))
	for i, class := range ready {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := r.trainOne(ctx, class)
		results = append(results, result)
		if progress != nil {
			progress(i+1, len(ready), result)
		}
	}

	return results, nil
}

func (r *Registrar) trainOne(ctx context.Context, class model.RegistrationClass) TrainResult {
	result := TrainResult{
		ClassID:   class.ID,
		Label:     class.Label,
		StudentID: StudentID(class.Label, r.now()),
		Samples:   len(class.Samples),
	}

	res, err := r.upload(ctx, class, result.StudentID, class.Label)
	if err != nil {
		result.Message = backend.Message(err)
		r.logger.Error("Error registering %s: %v", class.Label, err)
		return result
	}

	result.OK = true
	result.Message = res.Message
	return result
}

// RegisterClass uploads the samples of one class as a student with an
// explicit ID. An empty name falls back to the class label and an empty ID is
// derived from the name. The uploaded samples are cleared on success.
func (r *Registrar) RegisterClass(ctx context.Context, classID int64, studentID, name string) (*backend.RegistrationResult, error) {
	class, err := r.Class(classID)
	if err != nil {
		return nil, err
	}
	if len(class.Samples) == 0 {
		return nil, ErrNoSamples
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(class.Label)
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		studentID = StudentID(name, r.now())
	}

	return r.upload(ctx, *class, studentID, name)
}

// upload registers the class samples and then removes exactly those
// samples. Samples recorded during the upload stay for the next run.
func (r *Registrar) upload(ctx context.Context, class model.RegistrationClass, studentID, name string) (*backend.RegistrationResult, error) {
	samples := make([]model.FrameSample, len(class.Samples))
	var lastID int64
	for i, s := range class.Samples {
		samples[i] = s.FrameSample
		if s.ID > lastID {
			lastID = s.ID
		}
	}

	res, err := r.Register(ctx, studentID, name, samples)
	if err != nil {
		return nil, err
	}

	if err := r.classes.ClearSamples(class.ID, lastID); err != nil {
		r.logger.Error("Failed to clear samples for class %d: %v", class.ID, err)
	}
	return res, nil
}

// Register uploads one student directly.
func (r *Registrar) Register(ctx context.Context, studentID, name string, samples []model.FrameSample) (*backend.RegistrationResult, error) {
	res, err := r.uploader.RegisterStudent(ctx, backend.Registration{
		StudentID: studentID,
		Name:      name,
		Samples:   samples,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Registered student %s (%s) with %d images", name, studentID, len(samples))
	if r.journal != nil {
		r.journal.Record(model.Event{
			Kind:      model.EventRegistered,
			Message:   fmt.Sprintf("Registered: %s", name),
			Student:   name,
			Timestamp: r.now(),
		})
	}
	return res, nil
}

// StudentID builds "<label with whitespace runs as underscores, lowercased>_<unix millis>".
func StudentID(label string, at time.Time) string {
	var b strings.Builder
	inSpace := false
	for _, c := range label {
		if unicode.IsSpace(c) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(c)
	}
	return strings.ToLower(b.String()) + "_" + fmt.Sprint(at.UnixMilli())
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrClassNotFound
	}
	return err
}
