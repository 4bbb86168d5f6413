package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.LabelFileName != "Label.txt" {
		t.Errorf("LabelFileName = %q, want Label.txt", cfg.LabelFileName)
	}
	if cfg.MaxImageBytes != 10*1024*1024 {
		t.Errorf("MaxImageBytes = %d, want 10MB", cfg.MaxImageBytes)
	}
	if cfg.RecognizeTimeout != 30*time.Second {
		t.Errorf("RecognizeTimeout = %s, want 30s", cfg.RecognizeTimeout)
	}
	if cfg.Models.Tesseract.Language != "eng" {
		t.Errorf("Tesseract.Language = %q, want eng", cfg.Models.Tesseract.Language)
	}
	if cfg.Models.VLM.Temperature != 0.1 {
		t.Errorf("VLM.Temperature = %v, want 0.1", cfg.Models.VLM.Temperature)
	}
	if cfg.Models.VLM.MaxTokens != 50 {
		t.Errorf("VLM.MaxTokens = %d, want 50", cfg.Models.VLM.MaxTokens)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("OCR_EVAL_LABEL_FILE", "labels.txt")
	t.Setenv("OCR_EVAL_RECOGNIZE_TIMEOUT", "5s")
	t.Setenv("OCR_EVAL_MAX_IMAGE_SIZE", "1024")
	t.Setenv("OCR_EVAL_TESSERACT_LANG", "deu")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.LabelFileName != "labels.txt" {
		t.Errorf("LabelFileName = %q, want labels.txt", cfg.LabelFileName)
	}
	if cfg.RecognizeTimeout != 5*time.Second {
		t.Errorf("RecognizeTimeout = %s, want 5s", cfg.RecognizeTimeout)
	}
	if cfg.MaxImageBytes != 1024 {
		t.Errorf("MaxImageBytes = %d, want 1024", cfg.MaxImageBytes)
	}
	if cfg.Models.Tesseract.Language != "deu" {
		t.Errorf("Tesseract.Language = %q, want deu", cfg.Models.Tesseract.Language)
	}
}

func TestLoadFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("OCR_EVAL_RECOGNIZE_TIMEOUT", "definitely not a duration")
	t.Setenv("OCR_EVAL_MAX_IMAGE_SIZE", "not a number")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.RecognizeTimeout != 30*time.Second {
		t.Errorf("RecognizeTimeout = %s, want default 30s", cfg.RecognizeTimeout)
	}
	if cfg.MaxImageBytes != 10*1024*1024 {
		t.Errorf("MaxImageBytes = %d, want default 10MB", cfg.MaxImageBytes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "Defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "Empty label file name",
			mutate:  func(c *Config) { c.LabelFileName = "" },
			wantErr: true,
		},
		{
			name:    "Non-positive image size",
			mutate:  func(c *Config) { c.MaxImageBytes = 0 },
			wantErr: true,
		},
		{
			name:    "Non-positive timeout",
			mutate:  func(c *Config) { c.RecognizeTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "Port out of range",
			mutate:  func(c *Config) { c.Port = "99999" },
			wantErr: true,
		},
		{
			name:    "Non-numeric port",
			mutate:  func(c *Config) { c.Port = "http" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("YAML file overrides fields", func(t *testing.T) {
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv: %v", err)
		}

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "images_dir: /corpus\nmodels:\n  tesseract:\n    language: fra\n    char_whitelist: \"ABC123\"\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}

		if err := cfg.LoadFile(path); err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if cfg.ImagesDir != "/corpus" {
			t.Errorf("ImagesDir = %q, want /corpus", cfg.ImagesDir)
		}
		if cfg.Models.Tesseract.Language != "fra" {
			t.Errorf("Language = %q, want fra", cfg.Models.Tesseract.Language)
		}
		// Fields absent from the file keep their previous values.
		if cfg.LabelFileName != "Label.txt" {
			t.Errorf("LabelFileName = %q, want Label.txt", cfg.LabelFileName)
		}
	})

	t.Run("JSON file is accepted", func(t *testing.T) {
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv: %v", err)
		}

		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte(`{"output_dir": "/reports"}`), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := cfg.LoadFile(path); err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if cfg.OutputDir != "/reports" {
			t.Errorf("OutputDir = %q, want /reports", cfg.OutputDir)
		}
	})

	t.Run("Unsupported extension errors", func(t *testing.T) {
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv: %v", err)
		}
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := cfg.LoadFile(path); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func TestApplyModelOverrides(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	t.Run("Overrides merge into the named backend", func(t *testing.T) {
		if err := cfg.ApplyModelOverrides("vlm", `{"model": "custom-model", "max_tokens": 100}`); err != nil {
			t.Fatalf("ApplyModelOverrides: %v", err)
		}
		if cfg.Models.VLM.Model != "custom-model" {
			t.Errorf("Model = %q, want custom-model", cfg.Models.VLM.Model)
		}
		if cfg.Models.VLM.MaxTokens != 100 {
			t.Errorf("MaxTokens = %d, want 100", cfg.Models.VLM.MaxTokens)
		}
		// Untouched fields survive the merge.
		if cfg.Models.VLM.Temperature != 0.1 {
			t.Errorf("Temperature = %v, want 0.1", cfg.Models.VLM.Temperature)
		}
	})

	t.Run("Empty overrides are a no-op", func(t *testing.T) {
		if err := cfg.ApplyModelOverrides("tesseract", ""); err != nil {
			t.Errorf("ApplyModelOverrides with empty JSON: %v", err)
		}
	})

	t.Run("Unknown backend errors", func(t *testing.T) {
		if err := cfg.ApplyModelOverrides("paddle", `{}`); err == nil {
			t.Error("expected error for unknown backend")
		}
	})

	t.Run("Invalid JSON errors", func(t *testing.T) {
		if err := cfg.ApplyModelOverrides("vlm", `{broken`); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestServerAddress(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: "8080"}
	if got := cfg.ServerAddress(); got != "0.0.0.0:8080" {
		t.Errorf("ServerAddress = %q, want 0.0.0.0:8080", got)
	}
}
