package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/extract"
	"github.com/kozaktomas/picscreenr/internal/ingest"
	"github.com/kozaktomas/picscreenr/internal/match"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]any{"image_id": 7, "tags": []string{"dog"}})

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["image_id"] != float64(7) { // JSON numbers are float64
		t.Errorf("expected image_id 7, got %v", result["image_id"])
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusNotFound, errImageNotFound)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Image not found")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"extraction", fmt.Errorf("ingest: %w", &extract.ExtractionError{Stage: extract.StageDecode, Err: errors.New("bad")}), http.StatusUnprocessableEntity},
		{"dimension mismatch", fmt.Errorf("%w: 3 vs 4", match.ErrDimensionMismatch), http.StatusUnprocessableEntity},
		{"too large", fmt.Errorf("%w: limit", ingest.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"extractor unavailable", fmt.Errorf("ingest: %w", &extract.UnavailableError{Service: "face embedding server", Err: errors.New("connection refused")}), http.StatusBadGateway},
		{"conflict", fmt.Errorf("after 3 attempts: %w", database.ErrConflict), http.StatusConflict},
		{"not found", database.ErrNotFound, http.StatusNotFound},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, got)
			}
		})
	}
}

func TestStatusFor_HidesInternalErrors(t *testing.T) {
	_, msg := statusFor(errors.New("pq: password authentication failed"))
	if msg != "failed to process image" {
		t.Errorf("expected generic message, got '%s'", msg)
	}
}

func TestStatusFor_UnavailableMessage(t *testing.T) {
	status, msg := statusFor(&extract.UnavailableError{Service: "face embedding server", Err: errors.New("dial tcp 10.0.0.5:8000: connection refused")})
	if status != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, status)
	}
	if msg != "face embedding server unavailable" {
		t.Errorf("expected service name without the address, got '%s'", msg)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"1.5", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseID(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\r\nb.jpg"); got != "ab.jpg" {
		t.Errorf("expected 'ab.jpg', got '%s'", got)
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
