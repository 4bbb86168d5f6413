// Command evaluate runs one OCR accuracy evaluation over a labeled image
// corpus and writes Markdown and JSON reports.
//
// Usage:
//
//	evaluate -backend tesseract -images-dir data/images -output-dir data/reports
//	evaluate -backend vlm -images-dir azure://corpus/batch-07 -report-format json
//	evaluate -backend tesseract,vlm -images-dir data/images
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/evaluator"
	"go-ocr-eval/internal/logger"
	"go-ocr-eval/internal/report"
	"go-ocr-eval/internal/storage"
	"go-ocr-eval/pkg/models"

	_ "go-ocr-eval/internal/backend/gvision"
	_ "go-ocr-eval/internal/backend/tesseract"
	_ "go-ocr-eval/internal/backend/vlm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		backendName  = flag.String("backend", "tesseract", "recognition backend, or a comma-separated list to compare: "+strings.Join(evaluator.SupportedBackends(), ", "))
		imagesDir    = flag.String("images-dir", "", "corpus root: a local directory or azure://container/prefix (default from OCR_EVAL_IMAGES_DIR)")
		outputDir    = flag.String("output-dir", "", "directory for generated reports (default from OCR_EVAL_OUTPUT_DIR)")
		configFile   = flag.String("config", "", "optional YAML or JSON config file merged over environment settings")
		modelConfig  = flag.String("model-config", "", "optional JSON object of backend-specific overrides")
		reportFormat = flag.String("report-format", "both", "report output: markdown, json, or both")
		reportName   = flag.String("report-name", "", "base file name for reports, overriding the derived names")
		logLevel     = flag.String("log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			return err
		}
	}
	if *imagesDir != "" {
		cfg.ImagesDir = *imagesDir
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	backends := splitBackends(*backendName)
	if len(backends) == 0 {
		return fmt.Errorf("no backend given")
	}
	if len(backends) == 1 {
		if err := cfg.ApplyModelOverrides(backends[0], *modelConfig); err != nil {
			return err
		}
	} else if *modelConfig != "" {
		return fmt.Errorf("-model-config applies to a single backend, not a comparison")
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := storage.ForSource(cfg.ImagesDir, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := provider.Cleanup(); cerr != nil {
			log.WithError(cerr).Warn("Corpus cleanup failed")
		}
	}()

	root, err := provider.Fetch(ctx, cfg.ImagesDir)
	if err != nil {
		return err
	}

	generator := report.NewGenerator(log)

	if len(backends) == 1 {
		return runSingle(ctx, cfg, log, generator, backends[0], root, report.Format(*reportFormat), *reportName)
	}
	return runComparison(ctx, cfg, log, generator, backends, root, report.Format(*reportFormat), *reportName)
}

func runSingle(ctx context.Context, cfg *config.Config, log *logrus.Logger, generator *report.Generator, backendName, root string, format report.Format, reportName string) error {
	backend, err := evaluator.NewBackend(evaluator.BackendType(backendName), cfg, log)
	if err != nil {
		return err
	}

	runner := evaluator.NewRunner(backend, evaluator.OptionsFromConfig(cfg), log)
	summary, err := runner.EvaluateDataset(ctx, root)
	if err != nil {
		return err
	}

	written, err := generator.Save(*summary, cfg.OutputDir, format, reportName)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"model":              summary.ModelName,
		"total_images":       summary.TotalImages,
		"overall_similarity": summary.OverallSimilarity,
		"exact_match_rate":   summary.OverallExactMatchRate,
		"reports":            written,
	}).Info("Evaluation complete")

	return nil
}

// runComparison evaluates each backend over the same corpus and renders a
// side-by-side report. A backend that fails outright is logged and skipped;
// the comparison proceeds as long as at least two succeed.
func runComparison(ctx context.Context, cfg *config.Config, log *logrus.Logger, generator *report.Generator, backendNames []string, root string, format report.Format, reportName string) error {
	var summaries []models.DatasetSummary
	for _, name := range backendNames {
		backend, err := evaluator.NewBackend(evaluator.BackendType(name), cfg, log)
		if err != nil {
			return err
		}

		log.WithField("backend", name).Info("Evaluating model")
		runner := evaluator.NewRunner(backend, evaluator.OptionsFromConfig(cfg), log)
		summary, err := runner.EvaluateDataset(ctx, root)
		if err != nil {
			log.WithError(err).WithField("backend", name).Warn("Model evaluation failed, excluding from comparison")
			continue
		}

		if _, err := generator.Save(*summary, cfg.OutputDir, format, ""); err != nil {
			return err
		}
		summaries = append(summaries, *summary)
	}

	if len(summaries) < 2 {
		return fmt.Errorf("comparison needs at least two successful evaluations, got %d", len(summaries))
	}

	path, err := generator.SaveComparison(summaries, cfg.OutputDir, reportName)
	if err != nil {
		return err
	}

	// Ranking, best first.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].OverallSimilarity > summaries[j].OverallSimilarity
	})
	for i, s := range summaries {
		log.WithFields(logrus.Fields{
			"rank":               i + 1,
			"model":              s.ModelName,
			"overall_similarity": s.OverallSimilarity,
			"exact_match_rate":   s.OverallExactMatchRate,
		}).Info("Comparison ranking")
	}
	log.WithField("report", path).Info("Comparison complete")

	return nil
}

func splitBackends(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}
