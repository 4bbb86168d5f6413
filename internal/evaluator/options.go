package evaluator

import (
	"time"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/corpus"
)

// Options configures a Runner. Values are explicit rather than global so an
// engine instance is fully described by its constructor arguments.
type Options struct {
	// LabelFileName is the per-directory annotation file name.
	LabelFileName string

	// MaxImageBytes rejects oversized images without reading their
	// contents.
	MaxImageBytes int64

	// RecognizeTimeout bounds each backend call. Zero disables the bound.
	RecognizeTimeout time.Duration

	// WalkDepth is how many directory levels below the dataset root are
	// searched for labeled directories.
	WalkDepth int

	// SupportedFormats is the set of accepted image file extensions,
	// lowercase with leading dot.
	SupportedFormats map[string]struct{}
}

// DefaultOptions returns the options used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		LabelFileName:    "Label.txt",
		MaxImageBytes:    10 * 1024 * 1024, // 10MB
		RecognizeTimeout: 30 * time.Second,
		WalkDepth:        corpus.DefaultWalkDepth,
		SupportedFormats: map[string]struct{}{
			".jpg":  {},
			".jpeg": {},
			".png":  {},
			".bmp":  {},
			".tiff": {},
			".webp": {},
		},
	}
}

// OptionsFromConfig maps engine-relevant settings out of the application
// configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	if cfg.LabelFileName != "" {
		opts.LabelFileName = cfg.LabelFileName
	}
	if cfg.MaxImageBytes > 0 {
		opts.MaxImageBytes = cfg.MaxImageBytes
	}
	if cfg.RecognizeTimeout > 0 {
		opts.RecognizeTimeout = cfg.RecognizeTimeout
	}
	return opts
}
