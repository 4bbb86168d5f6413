package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/evaluator"
	"go-ocr-eval/internal/logger"
)

// stubBackend gives the registry-backed endpoints something to serve.
type stubBackend struct{}

func (stubBackend) ModelName() string                { return "stub-ocr" }
func (stubBackend) ModelType() string                { return "stub-ocr" }
func (stubBackend) Initialize(context.Context) error { return nil }
func (stubBackend) Cleanup() error                   { return nil }
func (stubBackend) TechnicalDetails() map[string]any { return nil }

func (stubBackend) Recognize(context.Context, string) (string, error) { return "", nil }

func init() {
	evaluator.Register("stub-ocr", func(cfg *config.Config, log *logrus.Logger) (evaluator.Backend, error) {
		return stubBackend{}, nil
	})
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		LabelFileName:    "Label.txt",
		MaxImageBytes:    10 * 1024 * 1024,
		RecognizeTimeout: 30 * time.Second,
		RequestTimeout:   time.Minute,
	}
	return NewHandler(cfg, logger.NewWithOutput("error", io.Discard))
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	testHandler(t).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "available" {
		t.Errorf("status field = %v, want available", body["status"])
	}
}

func TestListBackends(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/backends", nil)
	testHandler(t).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Backends []string `json:"backends"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	found := false
	for _, name := range body.Backends {
		if name == "stub-ocr" {
			found = true
		}
	}
	if !found {
		t.Errorf("backends = %v, missing registered stub-ocr", body.Backends)
	}
}

func TestEvaluateRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "Malformed JSON",
			body:       `{broken`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Missing required fields",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Unknown backend",
			body:       `{"backend": "no-such-backend", "source": "/tmp/corpus"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	handler := testHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("error response missing error field")
			}
		})
	}
}
