package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
)

// Response is the standard API response wrapper.
//
//   - Status indicates the overall result ("ok", "accepted", "error")
//   - Timestamp provides the response time
//   - Data carries the payload (optional)
//   - Error carries the failure message when Status is "error" (optional)
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
//
// Encoding happens into a buffer first so an encoding failure can still be
// turned into an error response before headers are sent.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func okResponse(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func acceptedResponse(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusAccepted, Response{
		Status:    "accepted",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func errorResponse(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     msg,
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	errorResponse(w, http.StatusBadRequest, msg)
}

// decodeJSONBody decodes the request body into dst, reporting a 400 on
// malformed input. Returns false when the response has already been written.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusForError maps a checkpoint pipeline error onto an HTTP status.
func statusForError(err error) int {
	var ce *cperrors.CheckpointError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case cperrors.ErrNoActiveState:
		return http.StatusConflict
	case cperrors.ErrCannotOpenFile:
		return http.StatusNotFound
	case cperrors.ErrInvalidArchive,
		cperrors.ErrIncompatibleVersion,
		cperrors.ErrMissingCoreData,
		cperrors.ErrMissingComponents:
		return http.StatusUnprocessableEntity
	case cperrors.ErrCancelled:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
