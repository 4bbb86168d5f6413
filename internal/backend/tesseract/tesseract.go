// Package tesseract evaluates images with the local Tesseract OCR engine
// through the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/evaluator"
)

func init() {
	evaluator.Register(evaluator.BackendTesseract, New)
}

// Evaluator wraps one gosseract client for the lifetime of a run. The client
// is owned exclusively by this instance; the engine never calls Recognize
// concurrently.
type Evaluator struct {
	cfg config.TesseractConfig
	log *logrus.Logger

	mu          sync.Mutex
	client      *gosseract.Client
	initialized bool
}

// New builds the Tesseract backend from configuration.
func New(cfg *config.Config, log *logrus.Logger) (evaluator.Backend, error) {
	tc := cfg.Models.Tesseract
	if tc.Language == "" {
		tc.Language = "eng"
	}
	return &Evaluator{cfg: tc, log: log}, nil
}

// ModelName identifies the engine in reports.
func (e *Evaluator) ModelName() string { return "Tesseract" }

// ModelType is the registry identifier.
func (e *Evaluator) ModelType() string { return string(evaluator.BackendTesseract) }

// Initialize creates the gosseract client and applies language and whitelist
// settings. Idempotent.
func (e *Evaluator) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(e.cfg.Language); err != nil {
		client.Close()
		return fmt.Errorf("set tesseract language %q: %w", e.cfg.Language, err)
	}
	if e.cfg.CharWhitelist != "" {
		if err := client.SetWhitelist(e.cfg.CharWhitelist); err != nil {
			client.Close()
			return fmt.Errorf("set tesseract whitelist: %w", err)
		}
	}

	e.client = client
	e.initialized = true
	e.log.WithField("language", e.cfg.Language).Debug("Tesseract client ready")
	return nil
}

// Recognize runs OCR on one image file. Text regions separated by newlines
// are joined with single spaces before scoring.
func (e *Evaluator) Recognize(ctx context.Context, imagePath string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return "", fmt.Errorf("tesseract backend is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := e.client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image %s: %w", imagePath, err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition: %w", err)
	}

	return strings.Join(strings.Fields(text), " "), nil
}

// Cleanup closes the client and resets initialization state. Safe to call in
// any state.
func (e *Evaluator) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		e.initialized = false
		return err
	}
	e.initialized = false
	return nil
}

// TechnicalDetails reports the configuration actually used.
func (e *Evaluator) TechnicalDetails() map[string]any {
	details := map[string]any{
		"engine":   "tesseract",
		"language": e.cfg.Language,
	}
	if e.cfg.CharWhitelist != "" {
		details["char_whitelist"] = e.cfg.CharWhitelist
	}
	return details
}
