package evaluator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"go-ocr-eval/internal/corpus"
	apperrors "go-ocr-eval/internal/errors"
	"go-ocr-eval/internal/scoring"
	"go-ocr-eval/pkg/models"
)

// Runner orchestrates the recognition lifecycle over a labeled corpus for one
// backend. A Runner moves between two states: Uninitialized and Initialized.
// EvaluateDirectory is only valid in Initialized; Cleanup returns to
// Uninitialized from either state.
type Runner struct {
	backend Backend
	opts    Options
	log     *logrus.Logger

	initialized bool
	initTime    time.Duration
}

// NewRunner wires a backend to the evaluation engine.
func NewRunner(backend Backend, opts Options, log *logrus.Logger) *Runner {
	return &Runner{
		backend: backend,
		opts:    opts,
		log:     log,
	}
}

// Initialize performs backend setup. Idempotent: a second call on an
// initialized runner is a no-op returning nil.
func (r *Runner) Initialize(ctx context.Context) error {
	if r.initialized {
		return nil
	}

	start := time.Now()
	if err := r.backend.Initialize(ctx); err != nil {
		return apperrors.NewSetupError(
			fmt.Sprintf("backend %s failed to initialize", r.backend.ModelName()), err)
	}

	r.initTime = time.Since(start)
	r.initialized = true

	r.log.WithFields(logrus.Fields{
		"model":       r.backend.ModelName(),
		"init_time_s": r.initTime.Seconds(),
	}).Info("Backend initialized")
	return nil
}

// Cleanup releases backend resources and resets the runner to Uninitialized.
// Safe to call in any state.
func (r *Runner) Cleanup() {
	if err := r.backend.Cleanup(); err != nil {
		r.log.WithError(err).WithField("model", r.backend.ModelName()).
			Warn("Backend cleanup reported an error")
	}
	r.initialized = false
}

// ValidateImage accepts a path only if it exists, is a regular file, has a
// supported extension, and is at or below the size limit. Rejected files are
// never read.
func (r *Runner) ValidateImage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewNotFoundError(fmt.Sprintf("image file not found: %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return apperrors.NewValidationError(fmt.Sprintf("not a regular file: %s", path), nil)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := r.opts.SupportedFormats[ext]; !ok {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported image format: %s", ext), nil)
	}
	if info.Size() > r.opts.MaxImageBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("image too large: %d bytes (limit %d)", info.Size(), r.opts.MaxImageBytes), nil)
	}
	return nil
}

// EvaluateDirectory evaluates every labeled image in one directory. It
// returns nil, with no side effects, when the runner is not initialized,
// when the annotation file is missing or yields no usable labels, or when
// every image fails. Per-image failures are logged and skipped.
func (r *Runner) EvaluateDirectory(ctx context.Context, directory string) *models.DirectoryResult {
	if !r.initialized {
		r.log.WithField("directory", directory).Error("Evaluator is not initialized")
		return nil
	}

	dirLog := r.log.WithField("directory", directory)
	dirLog.Info("Evaluating directory")

	labelPath := filepath.Join(directory, r.opts.LabelFileName)
	if _, err := os.Stat(labelPath); err != nil {
		dirLog.Warn("No annotation file found, skipping directory")
		return nil
	}

	labels, err := corpus.ParseLabelFile(labelPath, r.log)
	if err != nil {
		dirLog.WithError(err).Warn("Failed to read annotation file, skipping directory")
		return nil
	}
	if len(labels) == 0 {
		dirLog.Warn("Annotation file yielded no usable labels, skipping directory")
		return nil
	}

	dirLog.WithField("labels", len(labels)).Debug("Parsed annotation file")

	var results []models.EvaluationResult
	exactMatches := 0

	for _, entry := range labels {
		imagePath := filepath.Join(directory, entry.ImageName)

		if err := r.ValidateImage(imagePath); err != nil {
			r.log.WithError(err).WithField("image", imagePath).Warn("Skipping invalid image")
			continue
		}

		produced, err := r.recognize(ctx, imagePath)
		if err != nil {
			r.log.WithError(err).WithField("image", imagePath).Warn("Recognition failed, skipping image")
			continue
		}

		score := scoring.Compare(entry.ExpectedText, produced)
		if score.ExactMatch {
			exactMatches++
		}

		results = append(results, models.EvaluationResult{
			ImagePath:    imagePath,
			ExpectedText: entry.ExpectedText,
			ProducedText: produced,
			Similarity:   score.Similarity,
			ExactMatch:   score.ExactMatch,
			WER:          score.WER,
			CER:          score.CER,
		})

		r.log.WithFields(logrus.Fields{
			"image":       entry.ImageName,
			"expected":    entry.ExpectedText,
			"produced":    produced,
			"similarity":  score.Similarity,
			"exact_match": score.ExactMatch,
		}).Debug("Image evaluated")
	}

	if len(results) == 0 {
		dirLog.Error("No image in directory produced a usable result")
		return nil
	}

	similarities := make([]float64, len(results))
	for i, res := range results {
		similarities[i] = res.Similarity
	}

	return &models.DirectoryResult{
		DirectoryPath:   directory,
		ImageCount:      len(results),
		MeanSimilarity:  stat.Mean(similarities, nil),
		ExactMatchCount: exactMatches,
		ExactMatchRate:  float64(exactMatches) / float64(len(results)),
		Results:         results,
	}
}

// EvaluateDataset initializes the backend, walks the dataset root for labeled
// directories (two levels deep by default), evaluates each, and aggregates
// the results. Cleanup runs unconditionally once the walk completes. The
// only fatal conditions are a backend that cannot initialize and a run in
// which literally zero images were evaluated.
func (r *Runner) EvaluateDataset(ctx context.Context, root string) (*models.DatasetSummary, error) {
	if err := r.Initialize(ctx); err != nil {
		r.log.WithError(err).Error("Backend initialization failed, aborting evaluation")
		return nil, err
	}
	defer r.Cleanup()

	start := time.Now()
	r.log.WithFields(logrus.Fields{
		"model": r.backend.ModelName(),
		"root":  root,
	}).Info("Starting dataset evaluation")

	directories, err := corpus.FindLabeledDirectories(root, r.opts.LabelFileName, r.opts.WalkDepth)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot walk dataset root", err)
	}

	var dirResults []models.DirectoryResult
	for _, dir := range directories {
		if result := r.EvaluateDirectory(ctx, dir); result != nil {
			dirResults = append(dirResults, *result)
		}
	}

	summary := Aggregate(r.backend.ModelName(), dirResults, r.technicalDetails(time.Since(start), dirResults), time.Now())
	if summary.TotalImages == 0 {
		r.log.Error("No images were evaluated anywhere under the dataset root")
		return nil, apperrors.NewNotFoundError("no usable images under dataset root", nil)
	}

	r.log.WithFields(logrus.Fields{
		"model":              summary.ModelName,
		"total_images":       summary.TotalImages,
		"overall_similarity": summary.OverallSimilarity,
		"exact_match_rate":   summary.OverallExactMatchRate,
	}).Info("Dataset evaluation complete")

	return &summary, nil
}

// recognize bounds a single backend call with the configured timeout. A
// timed-out image is a per-image failure like any other.
func (r *Runner) recognize(ctx context.Context, imagePath string) (string, error) {
	if r.opts.RecognizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RecognizeTimeout)
		defer cancel()
	}
	return r.backend.Recognize(ctx, imagePath)
}

// technicalDetails merges backend-reported metadata with run timing. Backend
// entries are copied verbatim; the engine never interprets them.
func (r *Runner) technicalDetails(elapsed time.Duration, dirResults []models.DirectoryResult) map[string]any {
	details := make(map[string]any)
	for k, v := range r.backend.TechnicalDetails() {
		details[k] = v
	}

	totalImages := 0
	for _, dr := range dirResults {
		totalImages += dr.ImageCount
	}

	details["model_name"] = r.backend.ModelName()
	details["model_type"] = r.backend.ModelType()
	details["initialization_time_sec"] = r.initTime.Seconds()
	details["total_processing_time_sec"] = elapsed.Seconds()
	if totalImages > 0 {
		details["average_processing_time_sec"] = elapsed.Seconds() / float64(totalImages)
	} else {
		details["average_processing_time_sec"] = 0.0
	}
	return details
}
