package route

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kiosk/internal/backend"
	"kiosk/internal/camera"
	"kiosk/internal/config"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/service"
	"kiosk/internal/service/registration"
)

// ========================================
// Fakes
// ========================================

type fakeKiosk struct {
	startErr error
	shift    string
	stopped  int
}

func (k *fakeKiosk) Start(_ context.Context, shift string) error {
	if k.startErr != nil {
		return k.startErr
	}
	if strings.TrimSpace(shift) == "" {
		return service.ErrShiftRequired
	}
	k.shift = shift
	return nil
}

func (k *fakeKiosk) Stop() { k.stopped++ }

func (k *fakeKiosk) Status() service.Status {
	state := "idle"
	if k.shift != "" && k.stopped == 0 {
		state = "active"
	}
	return service.Status{State: state, Shift: k.shift}
}

type fakeDirectory struct {
	err     error
	deleted []string
}

func (d *fakeDirectory) Attendance(context.Context) ([]backend.AttendanceRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []backend.AttendanceRecord{{StudentID: "alice_1", StudentName: "Alice", Date: "2024-03-01", Status: "present"}}, nil
}

func (d *fakeDirectory) Students(context.Context) ([]backend.Student, error) {
	if d.err != nil {
		return nil, d.err
	}
	return nil, nil
}

func (d *fakeDirectory) DeleteStudent(_ context.Context, id string) error {
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, id)
	return nil
}

type fakeRegistry struct {
	classes   []model.RegistrationClass
	recording map[int64]bool
	trainErr  error
	students  []string
}

func (r *fakeRegistry) AddClass(label string) (*model.RegistrationClass, error) {
	c := model.RegistrationClass{ID: int64(len(r.classes) + 1), Label: label}
	r.classes = append(r.classes, c)
	return &c, nil
}

func (r *fakeRegistry) find(id int64) *model.RegistrationClass {
	for i := range r.classes {
		if r.classes[i].ID == id {
			return &r.classes[i]
		}
	}
	return nil
}

func (r *fakeRegistry) RenameClass(id int64, label string) error {
	c := r.find(id)
	if c == nil {
		return registration.ErrClassNotFound
	}
	c.Label = label
	return nil
}

func (r *fakeRegistry) RemoveClass(id int64) error {
	if r.find(id) == nil {
		return registration.ErrClassNotFound
	}
	return nil
}

func (r *fakeRegistry) RemoveSample(classID, sampleID int64) error {
	return registration.ErrClassNotFound
}

func (r *fakeRegistry) Classes() ([]model.RegistrationClass, error) { return r.classes, nil }

func (r *fakeRegistry) StartRecording(_ context.Context, id int64) error {
	if r.recording == nil {
		return registration.ErrCameraInactive
	}
	r.recording[id] = true
	return nil
}

func (r *fakeRegistry) StopRecording(id int64) bool {
	was := r.recording[id]
	delete(r.recording, id)
	return was
}

func (r *fakeRegistry) Recording(id int64) bool { return r.recording[id] }

func (r *fakeRegistry) Train(_ context.Context, progress registration.Progress) ([]registration.TrainResult, error) {
	if r.trainErr != nil {
		return nil, r.trainErr
	}
	results := []registration.TrainResult{{ClassID: 1, Label: "Alice", OK: true}, {ClassID: 2, Label: "Bob", Message: "No face found"}}
	for i, res := range results {
		progress(i+1, len(results), res)
	}
	return results, nil
}

func (r *fakeRegistry) RegisterClass(_ context.Context, classID int64, studentID, name string) (*backend.RegistrationResult, error) {
	c := r.find(classID)
	if c == nil {
		return nil, registration.ErrClassNotFound
	}
	if len(c.Samples) == 0 {
		return nil, registration.ErrNoSamples
	}
	r.students = append(r.students, studentID)
	return &backend.RegistrationResult{Message: "Student registered successfully", StudentID: studentID, Name: name}, nil
}

type fakeJournal struct{ limit int }

func (j *fakeJournal) Recent(limit int) ([]model.Event, error) {
	j.limit = limit
	return []model.Event{{Kind: model.EventCheckIn, Student: "Alice", Timestamp: time.Now()}}, nil
}

type env struct {
	handler   http.Handler
	kiosk     *fakeKiosk
	directory *fakeDirectory
	registry  *fakeRegistry
	journal   *fakeJournal
}

func newEnv(t *testing.T, cfg *config.Config) *env {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{StaticDirectory: t.TempDir(), BackendTimeout: time.Second}
	}
	e := &env{
		kiosk:     &fakeKiosk{},
		directory: &fakeDirectory{},
		registry:  &fakeRegistry{recording: map[int64]bool{}},
		journal:   &fakeJournal{},
	}
	e.handler = SetupRoutes(Dependencies{
		Kiosk:     e.kiosk,
		Directory: e.directory,
		Registry:  e.registry,
		Journal:   e.journal,
	}, cfg, logger.NewDiscard())
	return e
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

// ========================================
// Session
// ========================================

func TestSession_StartStop(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/session/start", `{"shift":"Morning"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status service.Status
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Shift != "Morning" || status.State != "active" {
		t.Errorf("Unexpected status: %+v", status)
	}

	rec = e.do(http.MethodPost, "/api/session/stop", "")
	if rec.Code != http.StatusOK || e.kiosk.stopped != 1 {
		t.Errorf("Expected stop to be called, got %d / %d", rec.Code, e.kiosk.stopped)
	}
}

func TestSession_StartFormValue(t *testing.T) {
	e := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader("shift=Evening"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || e.kiosk.shift != "Evening" {
		t.Errorf("Expected form shift to start session, got %d / %q", rec.Code, e.kiosk.shift)
	}
}

func TestSession_StartJSONWithCharset(t *testing.T) {
	e := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(`{"shift":"Morning"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || e.kiosk.shift != "Morning" {
		t.Errorf("Expected JSON shift to start session, got %d / %q: %s", rec.Code, e.kiosk.shift, rec.Body.String())
	}
}

func TestSession_StartErrors(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
		body     string
		expected int
	}{
		{"missing shift", nil, `{"shift":""}`, http.StatusBadRequest},
		{"camera denied", camera.ErrCameraUnavailable, `{"shift":"Morning"}`, http.StatusServiceUnavailable},
		{"camera busy", camera.ErrSessionBusy, `{"shift":"Morning"}`, http.StatusConflict},
		{"bad json", nil, `{"shift":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			e.kiosk.startErr = tt.startErr

			rec := e.do(http.MethodPost, "/api/session/start", tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

// ========================================
// Backend proxy
// ========================================

func TestAttendanceAndStudents(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/api/attendance", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id_student":"alice_1"`) {
		t.Errorf("Unexpected attendance response %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(http.MethodGet, "/api/students", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected empty list, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(http.MethodDelete, "/api/students/alice_1", "")
	if rec.Code != http.StatusNoContent || len(e.directory.deleted) != 1 || e.directory.deleted[0] != "alice_1" {
		t.Errorf("Unexpected delete result %d: %v", rec.Code, e.directory.deleted)
	}
}

func TestRegisterStudent(t *testing.T) {
	e := newEnv(t, nil)
	e.registry.classes = []model.RegistrationClass{
		{ID: 1, Label: "Alice", Samples: []model.Sample{{ID: 1}}},
		{ID: 2, Label: "Empty"},
	}

	rec := e.do(http.MethodPost, "/api/students", `{"student_id":"s1001","name":"Alice","class_id":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var res backend.RegistrationResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.StudentID != "s1001" || len(e.registry.students) != 1 {
		t.Errorf("Unexpected registration: %+v / %v", res, e.registry.students)
	}

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"missing class", `{"student_id":"s1","name":"A"}`, http.StatusBadRequest},
		{"unknown class", `{"student_id":"s1","name":"A","class_id":9}`, http.StatusNotFound},
		{"no images", `{"student_id":"s1","name":"A","class_id":2}`, http.StatusBadRequest},
		{"bad json", `{"class_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.do(http.MethodPost, "/api/students", tt.body); rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestBackendErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		message  string
	}{
		{"rejection", &backend.RejectionError{StatusCode: 404, Message: "Student not found"}, http.StatusNotFound, "Student not found"},
		{"transport", errors.Join(backend.ErrTransport, errors.New("refused")), http.StatusBadGateway, "Could not reach the attendance server"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			e.directory.err = tt.err

			rec := e.do(http.MethodDelete, "/api/students/ghost", "")
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.message {
				t.Errorf("Expected %q, got %q", tt.message, msg)
			}
		})
	}
}

// ========================================
// Classes
// ========================================

func TestClasses_CRUD(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/classes", `{"label":"Alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	if rec := e.do(http.MethodPatch, "/api/classes/1", `{"label":"Alicia"}`); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on rename, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPatch, "/api/classes/9", `{"label":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on unknown class, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPatch, "/api/classes/abc", `{"label":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on invalid ID, got %d", rec.Code)
	}

	if rec := e.do(http.MethodPost, "/api/classes/1/recording", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected recording to start, got %d", rec.Code)
	}

	rec = e.do(http.MethodGet, "/api/classes", "")
	var views []struct {
		ID        int64  `json:"id"`
		Label     string `json:"label"`
		Recording bool   `json:"recording"`
	}
	json.Unmarshal(rec.Body.Bytes(), &views)
	if len(views) != 1 || views[0].Label != "Alicia" || !views[0].Recording {
		t.Errorf("Unexpected class list: %+v", views)
	}

	if rec := e.do(http.MethodDelete, "/api/classes/1/recording", ""); rec.Code != http.StatusOK || e.registry.recording[1] {
		t.Errorf("Expected recording to stop, got %d", rec.Code)
	}
	if rec := e.do(http.MethodDelete, "/api/classes/1/samples/5", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown sample, got %d", rec.Code)
	}
	if rec := e.do(http.MethodDelete, "/api/classes/1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", rec.Code)
	}
}

func TestClasses_RecordingWithoutCamera(t *testing.T) {
	e := newEnv(t, nil)
	e.registry.recording = nil
	e.registry.AddClass("Alice")

	if rec := e.do(http.MethodPost, "/api/classes/1/recording", ""); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
}

func TestClasses_Train(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/classes/train", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var summary struct {
		Success int `json:"success"`
		Failed  int `json:"failed"`
	}
	json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.Success != 1 || summary.Failed != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	e.registry.trainErr = registration.ErrNothingToTrain
	rec = e.do(http.MethodPost, "/api/classes/train", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 with nothing to train, got %d", rec.Code)
	}
}

// ========================================
// Journal, pages, auth
// ========================================

func TestEvents_Limit(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/api/events?limit=5", "")
	if rec.Code != http.StatusOK || e.journal.limit != 5 {
		t.Errorf("Expected limit 5, got %d / %d", rec.Code, e.journal.limit)
	}
	e.do(http.MethodGet, "/api/events?limit=abc", "")
	if e.journal.limit != 50 {
		t.Errorf("Expected default limit 50, got %d", e.journal.limit)
	}
}

func TestPages(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>kiosk</h1>"), 0644)
	os.WriteFile(filepath.Join(dir, "train.html"), []byte("<h1>train</h1>"), 0644)

	e := newEnv(t, &config.Config{StaticDirectory: dir, BackendTimeout: time.Second})

	if rec := e.do(http.MethodGet, "/", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "kiosk") {
		t.Errorf("Expected index page, got %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/train", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "train") {
		t.Errorf("Expected train page, got %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestAPIToken(t *testing.T) {
	e := newEnv(t, &config.Config{StaticDirectory: t.TempDir(), BackendTimeout: time.Second, APIToken: "secret"})

	if rec := e.do(http.MethodGet, "/api/session", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}
}
