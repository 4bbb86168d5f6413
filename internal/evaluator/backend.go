package evaluator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
)

// Backend is the contract every recognition implementation satisfies. A
// backend may wrap a local OCR engine or a network-reachable serving process;
// the evaluation engine only ever sees this surface.
type Backend interface {
	// ModelName identifies the concrete model, e.g. "Tesseract" or
	// "Qwen2.5-VL-7B". Used in reports and generated filenames.
	ModelName() string

	// ModelType is the registry identifier the backend was selected by.
	ModelType() string

	// Initialize acquires the model or connection. It MUST be idempotent:
	// calling it when already initialized returns nil without side effects.
	// After a failure the backend must not be in a state where Recognize
	// can be called.
	Initialize(ctx context.Context) error

	// Recognize returns the backend's best-effort transcription of the
	// image at path. The caller treats any error as a per-image failure:
	// logged and skipped, never fatal to the run.
	Recognize(ctx context.Context, imagePath string) (string, error)

	// Cleanup releases backend resources and resets initialization state.
	// Safe to call even if Initialize never succeeded or was never called.
	Cleanup() error

	// TechnicalDetails reports backend metadata (configuration actually
	// used, connection info, post-processing rules) recorded verbatim in
	// the dataset summary.
	TechnicalDetails() map[string]any
}

// BackendType identifies a registered backend implementation.
type BackendType string

const (
	// BackendTesseract is the local Tesseract OCR engine.
	BackendTesseract BackendType = "tesseract"
	// BackendVLM is a chat-style multimodal model behind a local
	// OpenAI-compatible server.
	BackendVLM BackendType = "vlm"
	// BackendGoogleVision is the Google Cloud Vision document-text API.
	BackendGoogleVision BackendType = "gvision"
)

// Factory constructs a backend from configuration and an injected logger.
type Factory func(cfg *config.Config, log *logrus.Logger) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[BackendType]Factory)
)

// Register makes a backend available under the given identifier. Backends
// call this from init(); registering the same identifier twice panics to
// surface wiring mistakes early.
func Register(t BackendType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[t]; dup {
		panic(fmt.Sprintf("evaluator: backend %q registered twice", t))
	}
	registry[t] = f
}

// NewBackend creates the backend registered under t.
func NewBackend(t BackendType, cfg *config.Config, log *logrus.Logger) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported backend type: %s (supported: %v)", t, SupportedBackends())
	}
	return f(cfg, log)
}

// SupportedBackends lists registered backend identifiers in sorted order.
func SupportedBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for t := range registry {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
