package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"kiosk/internal/model"
)

var (
	// ErrNoSubject means the backend found no face in a check-in frame.
	ErrNoSubject = errors.New("no detectable subject")
	// ErrTransport covers unreachable backends, timeouts and unreadable responses.
	ErrTransport = errors.New("backend transport failure")
)

const noFacesMarker = "No faces"

// RejectionError is a validation or business rejection from the backend
// (duplicate check-in, wrong window, unknown face). Message is meant for users.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("backend rejected request (status %d): %s", e.StatusCode, e.Message)
}

// CheckIn is the backend's answer to a successful capture.
type CheckIn struct {
	Student string `json:"student"`
	Shift   string `json:"shift"`
	Message string `json:"message"`
}

// Prediction is the answer from /predict_face.
type Prediction struct {
	Match bool   `json:"match"`
	Name  string `json:"name,omitempty"`
}

// Student is a registered subject.
type Student struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

// AttendanceRecord is one row of the attendance list.
type AttendanceRecord struct {
	StudentID   string `json:"id_student"`
	StudentName string `json:"student_name"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Shift       string `json:"shift,omitempty"`
}

// Registration is the payload for /register_student.
type Registration struct {
	StudentID string
	Name      string
	Samples   []model.FrameSample
}

// RegistrationResult is the backend's answer to a stored registration.
type RegistrationResult struct {
	Message   string `json:"message"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

// errorBody covers the error shapes the backend returns: {"detail": "..."},
// {"detail": [{"msg": "..."}]} and {"error": "..."}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Client talks to the attendance backend.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

// NewClient creates a client for baseURL. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: missing scheme or host", baseURL)
	}
	return &Client{
		baseURL: parsed,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) resolve(segments ...string) string {
	return c.baseURL.JoinPath(segments...).String()
}

// Capture submits a frame for attendance check-in with the selected shift.
func (c *Client) Capture(ctx context.Context, sample model.FrameSample, shift string) (*CheckIn, error) {
	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := w.WriteField("image", sample.DataURL()); err != nil {
			return err
		}
		if shift != "" {
			return w.WriteField("shift", shift)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var result CheckIn
	if err := c.do(ctx, http.MethodPost, c.resolve("capture"), body, contentType, &result); err != nil {
		return nil, captureError(err)
	}
	if result.Shift == "" {
		result.Shift = shift
	}
	return &result, nil
}

// PredictFace asks the backend who is in the frame without recording attendance.
func (c *Client) PredictFace(ctx context.Context, sample model.FrameSample) (*Prediction, error) {
	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		return writeFile(w, "image", "frame"+sample.Extension(), sample)
	})
	if err != nil {
		return nil, err
	}

	var result Prediction
	if err := c.do(ctx, http.MethodPost, c.resolve("predict_face"), body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterStudent uploads a subject with one or more sample images.
func (c *Client) RegisterStudent(ctx context.Context, reg Registration) (*RegistrationResult, error) {
	if reg.StudentID == "" || reg.Name == "" {
		return nil, fmt.Errorf("student ID and name are required")
	}
	if len(reg.Samples) == 0 {
		return nil, fmt.Errorf("at least one image is required")
	}

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := w.WriteField("student_id", reg.StudentID); err != nil {
			return err
		}
		if err := w.WriteField("name", reg.Name); err != nil {
			return err
		}
		for i, sample := range reg.Samples {
			name := fmt.Sprintf("capture_%d%s", i, sample.Extension())
			if err := writeFile(w, "image_files", name, sample); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var result RegistrationResult
	if err := c.do(ctx, http.MethodPost, c.resolve("register_student"), body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Attendance returns the attendance list in backend order.
func (c *Client) Attendance(ctx context.Context) ([]AttendanceRecord, error) {
	var records []AttendanceRecord
	if err := c.do(ctx, http.MethodGet, c.resolve("attendance"), nil, "", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Students returns the registered subjects in backend order.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	var students []Student
	if err := c.do(ctx, http.MethodGet, c.resolve("students"), nil, "", &students); err != nil {
		return nil, err
	}
	return students, nil
}

// DeleteStudent removes a registered subject.
func (c *Client) DeleteStudent(ctx context.Context, studentID string) error {
	if studentID == "" {
		return fmt.Errorf("student ID is required")
	}
	return c.do(ctx, http.MethodDelete, c.resolve("student", studentID), nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed response from %s: %v", ErrTransport, req.URL.Path, err)
	}
	return nil
}

// Message returns the user-facing text of a backend error.
func Message(err error) string {
	var rej *RejectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rej):
		return rej.Message
	case errors.Is(err, ErrNoSubject):
		msg := strings.TrimPrefix(err.Error(), ErrNoSubject.Error()+": ")
		if msg == "" {
			return "No faces detected"
		}
		return msg
	case errors.Is(err, ErrTransport):
		return "Could not reach the attendance server"
	default:
		return err.Error()
	}
}

func parseError(status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("%w: malformed error response (status %d): %v", ErrTransport, status, err)
	}

	message := detailMessage(body.Detail)
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = body.Message
	}

	if message == "" {
		message = "Unknown Error"
	}
	return &RejectionError{StatusCode: status, Message: message}
}

// captureError turns a "No faces" rejection of /capture into ErrNoSubject.
// Other endpoints report the same text as a normal rejection.
func captureError(err error) error {
	var rej *RejectionError
	if errors.As(err, &rej) && strings.Contains(rej.Message, noFacesMarker) {
		return fmt.Errorf("%w: %s", ErrNoSubject, rej.Message)
	}
	return err
}

// detailMessage extracts a message from a string or list-of-objects detail.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	var obj struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Msg
	}
	return string(raw)
}

func buildForm(fill func(w *multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := fill(writer); err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename string, sample model.FrameSample) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	mimeType := sample.MimeType
	if mimeType == "" {
		mimeType = model.MimeJPEG
	}
	h.Set("Content-Type", mimeType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(sample.Data); err != nil {
		return fmt.Errorf("failed to write image data: %w", err)
	}
	return nil
}
