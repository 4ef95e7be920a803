package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter converts BuildErrors into JSON HTTP error responses.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter that logs written errors.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteErrorResponse maps the error category to an HTTP status and writes a
// JSON error body.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var be *BuildError
	if errors.As(err, &be) {
		message = be.Error()
		switch be.Category {
		case CategoryValidation:
			status = http.StatusBadRequest
		case CategoryNotFound:
			status = http.StatusNotFound
		}
	}

	if status == http.StatusInternalServerError {
		a.logger.Error("HTTP error response", "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Success: false, Error: message})
}
