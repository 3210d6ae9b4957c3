package handler

import (
	"context"
	"net/http"

	"kiosk/internal/backend"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/service/registration"
)

// EventTrain is the viewer event carrying training progress.
const EventTrain = "train"

// Registry manages registration classes.
type Registry interface {
	AddClass(label string) (*model.RegistrationClass, error)
	RenameClass(id int64, label string) error
	RemoveClass(id int64) error
	RemoveSample(classID, sampleID int64) error
	Classes() ([]model.RegistrationClass, error)
	StartRecording(ctx context.Context, classID int64) error
	StopRecording(classID int64) bool
	Recording(classID int64) bool
	Train(ctx context.Context, progress registration.Progress) ([]registration.TrainResult, error)
	RegisterClass(ctx context.Context, classID int64, studentID, name string) (*backend.RegistrationResult, error)
}

// Broadcaster delivers typed events to viewers.
type Broadcaster interface {
	Send(eventType string, payload interface{})
}

type classRequest struct {
	Label string `json:"label"`
}

// classView is a class as listed by the API; sample bytes are left out.
type classView struct {
	ID        int64        `json:"id"`
	Label     string       `json:"label"`
	Recording bool         `json:"recording"`
	Samples   []sampleView `json:"samples"`
}

type sampleView struct {
	ID       int64  `json:"id"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

func newClassView(c model.RegistrationClass, recording bool) classView {
	v := classView{ID: c.ID, Label: c.Label, Recording: recording, Samples: make([]sampleView, 0, len(c.Samples))}
	for _, s := range c.Samples {
		v.Samples = append(v.Samples, sampleView{ID: s.ID, MimeType: s.MimeType, Size: len(s.Data)})
	}
	return v
}

// ListClassesHandler lists every class with sample metadata.
func ListClassesHandler(reg Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classes, err := reg.Classes()
		if err != nil {
			logger.Error("Error loading classes: %v", err)
			respondErr(w, err)
			return
		}

		views := make([]classView, 0, len(classes))
		for _, c := range classes {
			views = append(views, newClassView(c, reg.Recording(c.ID)))
		}
		respondJSON(w, http.StatusOK, views)
	}
}

// CreateClassHandler adds a class, optionally labelled.
func CreateClassHandler(reg Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req classRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		class, err := reg.AddClass(req.Label)
		if err != nil {
			logger.Error("Error creating class: %v", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, newClassView(*class, false))
	}
}

// RenameClassHandler changes a class label.
func RenameClassHandler(reg Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid class ID")
			return
		}
		var req classRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := reg.RenameClass(id, req.Label); err != nil {
			respondErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteClassHandler removes a class and its samples.
func DeleteClassHandler(reg Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid class ID")
			return
		}

		if err := reg.RemoveClass(id); err != nil {
			respondErr(w, err)
			return
		}
		logger.Info("Deleted class %d", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// StartRecordingHandler starts hold-to-record for a class.
func StartRecordingHandler(reg Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid class ID")
			return
		}

		if err := reg.StartRecording(r.Context(), id); err != nil {
			logger.Warning("Recording for class %d not started: %v", id, err)
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"recording": true})
	}
}

// StopRecordingHandler releases hold-to-record for a class.
func StopRecordingHandler(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid class ID")
			return
		}
		reg.StopRecording(id)
		respondJSON(w, http.StatusOK, map[string]bool{"recording": false})
	}
}

// DeleteSampleHandler removes one recorded sample.
func DeleteSampleHandler(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID, ok := idParam(r, "id")
		sampleID, ok2 := idParam(r, "sampleID")
		if !ok || !ok2 {
			respondError(w, http.StatusBadRequest, "Invalid class or sample ID")
			return
		}

		if err := reg.RemoveSample(classID, sampleID); err != nil {
			respondErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type trainProgress struct {
	Done   int                      `json:"done"`
	Total  int                      `json:"total"`
	Result registration.TrainResult `json:"result"`
}

type trainSummary struct {
	Success int                        `json:"success"`
	Failed  int                        `json:"failed"`
	Results []registration.TrainResult `json:"results"`
}

// TrainHandler uploads every ready class and streams progress to viewers.
func TrainHandler(reg Registry, hub Broadcaster, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := reg.Train(r.Context(), func(done, total int, result registration.TrainResult) {
			if hub != nil {
				hub.Send(EventTrain, trainProgress{Done: done, Total: total, Result: result})
			}
		})
		if err != nil {
			logger.Warning("Training not completed: %v", err)
			respondErr(w, err)
			return
		}

		summary := trainSummary{Results: results}
		for _, res := range results {
			if res.OK {
				summary.Success++
			} else {
				summary.Failed++
			}
		}
		logger.Info("Training completed. Success: %d, Failed: %d", summary.Success, summary.Failed)
		respondJSON(w, http.StatusOK, summary)
	}
}
