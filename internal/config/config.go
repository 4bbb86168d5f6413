package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every setting the toolkit needs. It is built once in main
// and passed down explicitly; no package reads configuration on its own.
type Config struct {
	// Corpus and report locations
	ImagesDir string `yaml:"images_dir" json:"images_dir"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Engine settings
	LabelFileName    string        `yaml:"label_file_name" json:"label_file_name"`
	MaxImageBytes    int64         `yaml:"max_image_bytes" json:"max_image_bytes"`
	RecognizeTimeout time.Duration `yaml:"recognize_timeout" json:"recognize_timeout"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// HTTP service settings (cmd/api only)
	Host           string        `yaml:"host" json:"host"`
	Port           string        `yaml:"port" json:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Azure blob storage credentials, used when the corpus source is an
	// azure:// URL.
	AzureAccountName string `yaml:"azure_account_name" json:"azure_account_name"`
	AzureAccountKey  string `yaml:"azure_account_key" json:"azure_account_key"`

	Models ModelsConfig `yaml:"models" json:"models"`
}

// ModelsConfig groups per-backend settings.
type ModelsConfig struct {
	Tesseract    TesseractConfig    `yaml:"tesseract" json:"tesseract"`
	VLM          VLMConfig          `yaml:"vlm" json:"vlm"`
	GoogleVision GoogleVisionConfig `yaml:"gvision" json:"gvision"`
}

// TesseractConfig configures the local Tesseract backend.
type TesseractConfig struct {
	Language      string `yaml:"language" json:"language"`
	CharWhitelist string `yaml:"char_whitelist" json:"char_whitelist"`
}

// VLMConfig configures the chat-style multimodal backend reached over a
// local OpenAI-compatible server.
type VLMConfig struct {
	Model          string  `yaml:"model" json:"model"`
	Endpoint       string  `yaml:"endpoint" json:"endpoint"`
	Temperature    float64 `yaml:"temperature" json:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" json:"max_tokens"`
	PromptTemplate string  `yaml:"prompt_template" json:"prompt_template"`
}

// GoogleVisionConfig configures the Cloud Vision backend. Credentials come
// from the standard GOOGLE_APPLICATION_CREDENTIALS mechanism.
type GoogleVisionConfig struct {
	LanguageHints []string `yaml:"language_hints" json:"language_hints"`
}

// DefaultVLMPrompt asks the model for the literal text only; multimodal chat
// models otherwise tend to describe the image instead of transcribing it.
const DefaultVLMPrompt = "Please look at this image carefully and extract the exact text/code shown in the image. " +
	"This appears to be an alphanumeric code or product number. Please provide ONLY the exact text you see, " +
	"without any additional explanation or formatting. The text typically consists of letters, numbers, " +
	"and may include symbols like # or ."

// ServerAddress joins host and port for the HTTP service.
func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv builds a Config from defaults overridden by environment
// variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ImagesDir:        getEnvOrDefault("OCR_EVAL_IMAGES_DIR", "data/images"),
		OutputDir:        getEnvOrDefault("OCR_EVAL_OUTPUT_DIR", "data/reports"),
		LabelFileName:    getEnvOrDefault("OCR_EVAL_LABEL_FILE", "Label.txt"),
		MaxImageBytes:    parseIntOrDefault("OCR_EVAL_MAX_IMAGE_SIZE", 10*1024*1024), // 10MB
		RecognizeTimeout: parseDurationOrDefault("OCR_EVAL_RECOGNIZE_TIMEOUT", 30*time.Second),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		Host:             getEnvOrDefault("HOST", "0.0.0.0"),
		Port:             getEnvOrDefault("PORT", "8080"),
		RequestTimeout:   parseDurationOrDefault("REQUEST_TIMEOUT", 10*time.Minute),
		AzureAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
		Models: ModelsConfig{
			Tesseract: TesseractConfig{
				Language: getEnvOrDefault("OCR_EVAL_TESSERACT_LANG", "eng"),
			},
			VLM: VLMConfig{
				Model:          getEnvOrDefault("OCR_EVAL_VLM_MODEL", "qwen/qwen2.5-vl-7b"),
				Endpoint:       getEnvOrDefault("LMSTUDIO_URL", "http://localhost:1234/v1/chat/completions"),
				Temperature:    0.1,
				MaxTokens:      50,
				PromptTemplate: DefaultVLMPrompt,
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML or JSON configuration file over cfg. File values
// win over environment defaults; zero values in the file leave cfg alone.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse JSON config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}

	return c.Validate()
}

// ApplyModelOverrides merges a JSON object of backend-specific settings, as
// given on the command line, into the named backend's sub-config.
func (c *Config) ApplyModelOverrides(backend, rawJSON string) error {
	if rawJSON == "" {
		return nil
	}

	var target any
	switch backend {
	case "tesseract":
		target = &c.Models.Tesseract
	case "vlm":
		target = &c.Models.VLM
	case "gvision":
		target = &c.Models.GoogleVision
	default:
		return fmt.Errorf("unknown backend %q for model overrides", backend)
	}

	if err := json.Unmarshal([]byte(rawJSON), target); err != nil {
		return fmt.Errorf("invalid model config JSON: %w", err)
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.LabelFileName == "" {
		return fmt.Errorf("label file name must not be empty")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max image size must be > 0 (got %d)", c.MaxImageBytes)
	}
	if c.RecognizeTimeout <= 0 {
		return fmt.Errorf("recognize timeout must be > 0 (got %s)", c.RecognizeTimeout)
	}
	if c.Port != "" {
		p, err := strconv.Atoi(strings.TrimSpace(c.Port))
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", c.Port)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
