// Package storage resolves a corpus source to a local directory tree the
// evaluator can walk. Local paths are used in place; remote sources are
// staged into a temporary directory first.
package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	apperrors "go-ocr-eval/internal/errors"
)

// AzureScheme prefixes sources held in Azure blob storage:
// azure://container/prefix.
const AzureScheme = "azure://"

// CorpusProvider makes a corpus source available on the local filesystem.
type CorpusProvider interface {
	// Fetch returns a local directory containing the corpus.
	Fetch(ctx context.Context, source string) (string, error)
	// Cleanup removes anything Fetch staged. Safe to call in any state.
	Cleanup() error
}

// ForSource picks a provider from the source's scheme.
func ForSource(source string, cfg *config.Config, log *logrus.Logger) (CorpusProvider, error) {
	if strings.HasPrefix(source, AzureScheme) {
		return NewAzureProvider(cfg.AzureAccountName, cfg.AzureAccountKey, log)
	}
	return NewLocalProvider(log), nil
}

type localProvider struct {
	log *logrus.Logger
}

// NewLocalProvider returns a provider that validates and uses a directory in
// place.
func NewLocalProvider(log *logrus.Logger) CorpusProvider {
	return &localProvider{log: log}
}

func (p *localProvider) Fetch(_ context.Context, source string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("images directory %s", source), err)
	}
	if !info.IsDir() {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s is not a directory", source), nil)
	}
	return source, nil
}

func (p *localProvider) Cleanup() error { return nil }
