// Package gvision evaluates images with the Google Cloud Vision document
// text detection API. Credentials come from the standard
// GOOGLE_APPLICATION_CREDENTIALS environment variable.
package gvision

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/evaluator"
)

func init() {
	evaluator.Register(evaluator.BackendGoogleVision, New)
}

// Evaluator holds an annotator client for the duration of a run so each
// image does not pay the connection setup cost.
type Evaluator struct {
	cfg    config.GoogleVisionConfig
	log    *logrus.Logger
	client *vision.ImageAnnotatorClient

	initialized bool
}

// New builds the Google Cloud Vision backend from configuration.
func New(cfg *config.Config, log *logrus.Logger) (evaluator.Backend, error) {
	return &Evaluator{cfg: cfg.Models.GoogleVision, log: log}, nil
}

// ModelName identifies the backend in reports.
func (e *Evaluator) ModelName() string { return "google-cloud-vision" }

// ModelType is the registry identifier.
func (e *Evaluator) ModelType() string { return string(evaluator.BackendGoogleVision) }

// Initialize creates the annotator client. Idempotent.
func (e *Evaluator) Initialize(ctx context.Context) error {
	if e.initialized {
		return nil
	}

	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return fmt.Errorf("create vision client: %w", err)
	}

	e.client = client
	e.initialized = true
	e.log.WithField("language_hints", e.cfg.LanguageHints).Info("Google Cloud Vision client ready")
	return nil
}

// Recognize runs document text detection on one image and returns the full
// detected text joined on single spaces.
func (e *Evaluator) Recognize(ctx context.Context, imagePath string) (string, error) {
	if !e.initialized {
		return "", fmt.Errorf("google vision backend is not initialized")
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", imagePath, err)
	}
	defer f.Close()

	image, err := vision.NewImageFromReader(f)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", imagePath, err)
	}

	var imageCtx *visionpb.ImageContext
	if len(e.cfg.LanguageHints) > 0 {
		imageCtx = &visionpb.ImageContext{LanguageHints: e.cfg.LanguageHints}
	}

	annotation, err := e.client.DetectDocumentText(ctx, image, imageCtx)
	if err != nil {
		return "", fmt.Errorf("detect document text: %w", err)
	}

	return strings.Join(strings.Fields(annotation.GetText()), " "), nil
}

// Cleanup closes the annotator client and resets initialization state.
func (e *Evaluator) Cleanup() error {
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		e.initialized = false
		return err
	}
	e.initialized = false
	return nil
}

// TechnicalDetails reports the API and configured language hints.
func (e *Evaluator) TechnicalDetails() map[string]any {
	details := map[string]any{
		"api":     "google-cloud-vision",
		"feature": "document_text_detection",
	}
	if len(e.cfg.LanguageHints) > 0 {
		details["language_hints"] = e.cfg.LanguageHints
	}
	return details
}
