package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parcelas/internal/core"
	"parcelas/internal/storage"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/1").
		Body(map[string]int{"count": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"count":2}` {
		t.Errorf("Body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Location") != "/api/expenses/1" {
		t.Errorf("Location header not set")
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: fmt.Errorf("build schedule: %w", core.ErrEmptyName), want: http.StatusUnprocessableEntity},
		{name: "bad month", err: core.ErrInvalidMonthKey, want: http.StatusUnprocessableEntity},
		{name: "duplicate", err: &storage.StorageError{Op: "create", Kind: storage.ErrDuplicateKey}, want: http.StatusConflict},
		{name: "unavailable", err: fmt.Errorf("save: %w", &storage.StorageError{Op: "create", Kind: storage.ErrStoreUnavailable}), want: http.StatusServiceUnavailable},
		{name: "aborted", err: &storage.StorageError{Op: "create", Kind: storage.ErrTransactionAborted}, want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFor(tt.err).Write(w)
			if w.Code != tt.want {
				t.Errorf("ErrorFor(%v) status = %d, want %d", tt.err, w.Code, tt.want)
			}
			if !strings.Contains(w.Body.String(), `"error":`) {
				t.Errorf("missing error field: %s", w.Body.String())
			}
		})
	}
}

func TestInternalErrorsDoNotLeakDetails(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFor(errors.New("disk /var/lib/secret failed")).Write(w)
	if strings.Contains(w.Body.String(), "secret") {
		t.Errorf("internal error details leaked: %s", w.Body.String())
	}
}

func TestTooManyRequestsError(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError(60).Write(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}
