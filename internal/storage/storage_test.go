package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/logger"
)

func TestLocalProvider(t *testing.T) {
	log := logger.NewWithOutput("error", io.Discard)
	p := NewLocalProvider(log)

	t.Run("Existing directory is used in place", func(t *testing.T) {
		dir := t.TempDir()
		got, err := p.Fetch(context.Background(), dir)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if got != dir {
			t.Errorf("Fetch = %q, want %q", got, dir)
		}
	})

	t.Run("Missing directory errors", func(t *testing.T) {
		if _, err := p.Fetch(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("Regular file errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := p.Fetch(context.Background(), path); err == nil {
			t.Error("expected error for non-directory source")
		}
	})

	t.Run("Cleanup is a no-op", func(t *testing.T) {
		if err := p.Cleanup(); err != nil {
			t.Errorf("Cleanup: %v", err)
		}
	})
}

func TestForSource(t *testing.T) {
	log := logger.NewWithOutput("error", io.Discard)

	t.Run("Plain path selects the local provider", func(t *testing.T) {
		p, err := ForSource("/some/dir", &config.Config{}, log)
		if err != nil {
			t.Fatalf("ForSource: %v", err)
		}
		if _, ok := p.(*localProvider); !ok {
			t.Errorf("got %T, want *localProvider", p)
		}
	})

	t.Run("Azure scheme without credentials errors", func(t *testing.T) {
		if _, err := ForSource("azure://corpus/batch", &config.Config{}, log); err == nil {
			t.Error("expected error without azure credentials")
		}
	})
}

func TestParseAzureSource(t *testing.T) {
	tests := []struct {
		name          string
		source        string
		wantContainer string
		wantPrefix    string
		wantErr       bool
	}{
		{
			name:          "Container and prefix",
			source:        "azure://corpus/batch-07",
			wantContainer: "corpus",
			wantPrefix:    "batch-07",
		},
		{
			name:          "Nested prefix",
			source:        "azure://corpus/2024/week-12",
			wantContainer: "corpus",
			wantPrefix:    "2024/week-12",
		},
		{
			name:          "Container only",
			source:        "azure://corpus",
			wantContainer: "corpus",
			wantPrefix:    "",
		},
		{
			name:    "Missing container",
			source:  "azure:///prefix",
			wantErr: true,
		},
		{
			name:    "Not an azure URL",
			source:  "/local/path",
			wantErr: true,
		},
		{
			name:    "Bare scheme",
			source:  "azure://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container, prefix, err := parseAzureSource(tt.source)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAzureSource(%q) error = %v, wantErr %v", tt.source, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if container != tt.wantContainer || prefix != tt.wantPrefix {
				t.Errorf("parseAzureSource(%q) = (%q, %q), want (%q, %q)",
					tt.source, container, prefix, tt.wantContainer, tt.wantPrefix)
			}
		})
	}
}
