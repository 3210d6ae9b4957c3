package handler

import (
	"context"
	"net/http"

	"kiosk/internal/backend"
	"kiosk/internal/logger"

	"github.com/go-chi/chi/v5"
)

// Directory is the part of the backend that lists and removes students.
type Directory interface {
	Attendance(ctx context.Context) ([]backend.AttendanceRecord, error)
	Students(ctx context.Context) ([]backend.Student, error)
	DeleteStudent(ctx context.Context, studentID string) error
}

// AttendanceHandler proxies the backend attendance list.
func AttendanceHandler(dir Directory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := dir.Attendance(r.Context())
		if err != nil {
			logger.Error("Error loading attendance: %v", err)
			respondErr(w, err)
			return
		}
		if records == nil {
			records = []backend.AttendanceRecord{}
		}
		respondJSON(w, http.StatusOK, records)
	}
}

// StudentsHandler proxies the backend student list.
func StudentsHandler(dir Directory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		students, err := dir.Students(r.Context())
		if err != nil {
			logger.Error("Error loading students: %v", err)
			respondErr(w, err)
			return
		}
		if students == nil {
			students = []backend.Student{}
		}
		respondJSON(w, http.StatusOK, students)
	}
}

// DeleteStudentHandler removes a student by backend ID.
func DeleteStudentHandler(dir Directory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondError(w, http.StatusBadRequest, "Missing student ID")
			return
		}

		if err := dir.DeleteStudent(r.Context(), id); err != nil {
			logger.Error("Error deleting student %s: %v", id, err)
			respondErr(w, err)
			return
		}

		logger.Info("Deleted student: %s", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

type registerRequest struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	ClassID   int64  `json:"class_id"`
}

// RegisterStudentHandler registers the images recorded for a class as a
// student with the given ID and name.
func RegisterStudentHandler(reg Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ClassID <= 0 {
			respondError(w, http.StatusBadRequest, "Missing class ID")
			return
		}

		res, err := reg.RegisterClass(r.Context(), req.ClassID, req.StudentID, req.Name)
		if err != nil {
			logger.Error("Error registering class %d: %v", req.ClassID, err)
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, res)
	}
}
