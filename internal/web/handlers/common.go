package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/extract"
	"github.com/kozaktomas/picscreenr/internal/ingest"
	"github.com/kozaktomas/picscreenr/internal/match"
)

// Error messages returned by the API.
const (
	errNoFile        = "No file provided"
	errImageNotFound = "Image not found"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps pipeline and registry errors to an HTTP status and a client-facing message.
func statusFor(err error) (int, string) {
	var extractErr *extract.ExtractionError
	var unavailable *extract.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		return http.StatusBadGateway, unavailable.Service + " unavailable"
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity, extractErr.Error()
	case errors.Is(err, match.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict, "registry busy, retry the upload"
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "failed to process image"
	}
}

// parseID reads a positive integer id. Anything else is reported as not found, so
// "/description/abc" behaves like a missing image.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// nonNil keeps empty lists serialised as [] instead of null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
