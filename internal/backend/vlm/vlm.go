// Package vlm evaluates images with a chat-style multimodal model served by
// a local OpenAI-compatible endpoint (LM Studio and similar). The image is
// sent base64-encoded inside a chat message; the reply is cleaned to extract
// the transcription.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/evaluator"
)

func init() {
	evaluator.Register(evaluator.BackendVLM, New)
}

// alphanumericPattern matches product-code shaped tokens: letters and digits
// optionally followed by #, ., - and more of the same.
var alphanumericPattern = regexp.MustCompile(`[A-Z0-9]+[#.\-A-Z0-9]*`)

// explanationPrefixes are boilerplate openings chat models prepend despite
// being asked for the text only.
var explanationPrefixes = []string{
	"The text shown in the image is:",
	"The code in the image is:",
	"The text appears to be:",
	"I can see:",
	"The image shows:",
	"The alphanumeric code is:",
	"The product number is:",
	"Looking at this image, I can see:",
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Evaluator talks to the serving process over HTTP. The connection is the
// only resource it holds; Cleanup drops the client reference.
type Evaluator struct {
	cfg    config.VLMConfig
	log    *logrus.Logger
	client *http.Client

	initialized bool
}

// New builds the multimodal chat backend from configuration.
func New(cfg *config.Config, log *logrus.Logger) (evaluator.Backend, error) {
	vc := cfg.Models.VLM
	if vc.Endpoint == "" {
		return nil, fmt.Errorf("vlm backend requires an endpoint")
	}
	if vc.PromptTemplate == "" {
		vc.PromptTemplate = config.DefaultVLMPrompt
	}
	return &Evaluator{cfg: vc, log: log}, nil
}

// ModelName identifies the served model in reports.
func (e *Evaluator) ModelName() string {
	if e.cfg.Model != "" {
		return e.cfg.Model
	}
	return "vlm"
}

// ModelType is the registry identifier.
func (e *Evaluator) ModelType() string { return string(evaluator.BackendVLM) }

// Initialize builds the HTTP client and sends a text-only test message so a
// dead serving process fails the run up front instead of producing a corpus
// of empty transcriptions. Idempotent.
func (e *Evaluator) Initialize(ctx context.Context) error {
	if e.initialized {
		return nil
	}

	e.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          2,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 5 * time.Minute,
		},
	}

	e.log.WithFields(logrus.Fields{
		"model":    e.cfg.Model,
		"endpoint": e.cfg.Endpoint,
	}).Info("Testing connection to model server")

	req := chatRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []chatMessage{{
			Role:    "user",
			Content: []chatContent{{Type: "text", Text: "Hello, this is a connection test."}},
		}},
	}
	if _, err := e.send(ctx, req); err != nil {
		e.client = nil
		return fmt.Errorf("model server connection test: %w", err)
	}

	e.initialized = true
	return nil
}

// Recognize sends one image through the chat endpoint and cleans the reply
// down to the transcription.
func (e *Evaluator) Recognize(ctx context.Context, imagePath string) (string, error) {
	if !e.initialized {
		return "", fmt.Errorf("vlm backend is not initialized")
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", imagePath, err)
	}

	req := chatRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: e.cfg.PromptTemplate},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL(imagePath, data)}},
			},
		}},
	}

	raw, err := e.send(ctx, req)
	if err != nil {
		return "", err
	}

	return CleanResponse(raw), nil
}

// Cleanup drops the client reference and resets initialization state.
func (e *Evaluator) Cleanup() error {
	e.client = nil
	e.initialized = false
	return nil
}

// TechnicalDetails reports the served model, connection, prompt, and the
// post-processing rules applied to replies.
func (e *Evaluator) TechnicalDetails() map[string]any {
	return map[string]any{
		"model":           e.cfg.Model,
		"endpoint":        e.cfg.Endpoint,
		"temperature":     e.cfg.Temperature,
		"max_tokens":      e.cfg.MaxTokens,
		"prompt_template": e.cfg.PromptTemplate,
		"post_processing_rules": []string{
			"strip explanatory prefixes",
			"strip surrounding quotes",
			"keep first line only",
			"extract longest alphanumeric-code match",
		},
	}
}

// sendAttempts bounds retries against a serving process that is still
// loading the model. Client errors (4xx) are never retried.
const sendAttempts = 3

func (e *Evaluator) send(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
			e.log.WithField("attempt", attempt).Debug("Retrying model server request")
		}

		text, retryable, err := e.sendOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (e *Evaluator) sendOnce(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("model server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return "", resp.StatusCode >= 500, err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("model server returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

// CleanResponse reduces a chat reply to its transcription: explanatory
// prefixes and quotes are stripped, only the first line is kept, and the
// longest alphanumeric-code match wins when one is present.
func CleanResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	if cleaned == "" {
		return ""
	}

	for _, prefix := range explanationPrefixes {
		if len(cleaned) >= len(prefix) && strings.EqualFold(cleaned[:len(prefix)], prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
		}
	}

	cleaned = strings.Trim(cleaned, "\"'`")

	if i := strings.IndexByte(cleaned, '\n'); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}

	matches := alphanumericPattern.FindAllString(strings.ToUpper(cleaned), -1)
	if len(matches) > 0 {
		longest := matches[0]
		for _, m := range matches[1:] {
			if len(m) > len(longest) {
				longest = m
			}
		}
		return longest
	}

	return cleaned
}

func dataURL(imagePath string, data []byte) string {
	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".png":
		mime = "image/png"
	case ".bmp":
		mime = "image/bmp"
	case ".webp":
		mime = "image/webp"
	case ".tiff":
		mime = "image/tiff"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
