// Package report renders evaluation summaries as Markdown documents for
// humans and JSON documents for downstream tooling. Rendering is a pure
// function of the summary, so the same summary always produces the same
// bytes.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "go-ocr-eval/internal/errors"
	"go-ocr-eval/pkg/models"
)

// timestampLayout is used in generated file names.
const timestampLayout = "2006-01-02_15-04-05"

// maxTableRows caps the per-directory result table; the JSON report carries
// the full result set.
const maxTableRows = 10

// Format selects which documents Save writes.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatBoth     Format = "both"
)

// accuracyBand is a half-open similarity interval except the top band, which
// includes 1.0.
type accuracyBand struct {
	label string
	low   float64
	high  float64
}

var accuracyBands = []accuracyBand{
	{"0.90 - 1.00", 0.90, 1.00},
	{"0.80 - 0.90", 0.80, 0.90},
	{"0.70 - 0.80", 0.70, 0.80},
	{"0.60 - 0.70", 0.60, 0.70},
	{"0.00 - 0.60", 0.00, 0.60},
}

// Generator renders and persists evaluation reports.
type Generator struct {
	log *logrus.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(log *logrus.Logger) *Generator {
	return &Generator{log: log}
}

// MarkdownFileName derives the Markdown report name from the summary's model
// and timestamp.
func (g *Generator) MarkdownFileName(summary models.DatasetSummary) string {
	return fmt.Sprintf("%s_accuracy_report_%s.md", sanitizeName(summary.ModelName), summary.Timestamp.Format(timestampLayout))
}

// JSONFileName derives the JSON report name from the summary's model and
// timestamp.
func (g *Generator) JSONFileName(summary models.DatasetSummary) string {
	return fmt.Sprintf("%s_results_%s.json", sanitizeName(summary.ModelName), summary.Timestamp.Format(timestampLayout))
}

// RenderJSON serializes the full summary without loss.
func (g *Generator) RenderJSON(summary models.DatasetSummary) ([]byte, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, apperrors.NewReportError("failed to serialize results", err)
	}
	return append(data, '\n'), nil
}

// RenderMarkdown produces the human-readable accuracy report.
func (g *Generator) RenderMarkdown(summary models.DatasetSummary) string {
	var b strings.Builder

	b.WriteString("# OCR Accuracy Evaluation Report\n\n")
	fmt.Fprintf(&b, "**Model:** %s\n\n", summary.ModelName)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", summary.Timestamp.Format("2006-01-02 15:04:05"))

	b.WriteString("## Overall Results\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Total images evaluated | %d |\n", summary.TotalImages)
	fmt.Fprintf(&b, "| Mean similarity | %.4f |\n", summary.OverallSimilarity)
	fmt.Fprintf(&b, "| Exact match rate | %.2f%% |\n", summary.OverallExactMatchRate*100)
	fmt.Fprintf(&b, "| Directories | %d |\n\n", len(summary.DirectoryResults))

	g.writeTechnicalDetails(&b, summary.TechnicalDetails)
	g.writeDistribution(&b, summary)
	g.writeDirectorySections(&b, summary)
	g.writeMethodology(&b)
	g.writeConclusion(&b, summary)

	return b.String()
}

// Save writes the requested report documents into outputDir, creating it if
// needed, and returns the written paths. An empty baseName keeps the derived
// file names.
func (g *Generator) Save(summary models.DatasetSummary, outputDir string, format Format, baseName string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, apperrors.NewReportError(fmt.Sprintf("failed to create output directory %s", outputDir), err)
	}

	var written []string

	if format == FormatMarkdown || format == FormatBoth {
		name := g.MarkdownFileName(summary)
		if baseName != "" {
			name = baseName + ".md"
		}
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(g.RenderMarkdown(summary)), 0o644); err != nil {
			return written, apperrors.NewReportError(fmt.Sprintf("failed to write %s", path), err)
		}
		g.log.WithField("path", path).Info("Markdown report written")
		written = append(written, path)
	}

	if format == FormatJSON || format == FormatBoth {
		name := g.JSONFileName(summary)
		if baseName != "" {
			name = baseName + ".json"
		}
		path := filepath.Join(outputDir, name)
		data, err := g.RenderJSON(summary)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, apperrors.NewReportError(fmt.Sprintf("failed to write %s", path), err)
		}
		g.log.WithField("path", path).Info("JSON report written")
		written = append(written, path)
	}

	if len(written) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown report format %q", format), nil)
	}
	return written, nil
}

func (g *Generator) writeTechnicalDetails(b *strings.Builder, details map[string]any) {
	if len(details) == 0 {
		return
	}

	b.WriteString("## Technical Configuration\n\n")
	b.WriteString("| Setting | Value |\n|---------|-------|\n")

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(b, "| %s | %s |\n", k, formatDetail(details[k]))
	}
	b.WriteString("\n")
}

func (g *Generator) writeDistribution(b *strings.Builder, summary models.DatasetSummary) {
	counts := make([]int, len(accuracyBands))
	total := 0
	for _, dir := range summary.DirectoryResults {
		for _, res := range dir.Results {
			counts[bandIndex(res.Similarity)]++
			total++
		}
	}
	if total == 0 {
		return
	}

	b.WriteString("## Accuracy Distribution\n\n")
	b.WriteString("| Similarity range | Images | Share |\n|------------------|--------|-------|\n")
	for i, band := range accuracyBands {
		fmt.Fprintf(b, "| %s | %d | %.1f%% |\n", band.label, counts[i], float64(counts[i])/float64(total)*100)
	}
	b.WriteString("\n")
}

func (g *Generator) writeDirectorySections(b *strings.Builder, summary models.DatasetSummary) {
	if len(summary.DirectoryResults) == 0 {
		return
	}

	b.WriteString("## Results by Directory\n\n")
	for _, dir := range summary.DirectoryResults {
		fmt.Fprintf(b, "### %s\n\n", dir.DirectoryPath)
		fmt.Fprintf(b, "Images: %d, mean similarity: %.4f, exact matches: %d (%.2f%%)\n\n",
			dir.ImageCount, dir.MeanSimilarity, dir.ExactMatchCount, dir.ExactMatchRate*100)

		b.WriteString("| Image | Expected | Produced | Similarity | Exact |\n")
		b.WriteString("|-------|----------|----------|------------|-------|\n")

		rows := dir.Results
		truncated := false
		if len(rows) > maxTableRows {
			rows = rows[:maxTableRows]
			truncated = true
		}
		for _, res := range rows {
			mark := "✗"
			if res.ExactMatch {
				mark = "✓"
			}
			fmt.Fprintf(b, "| %s | %s | %s | %.4f | %s |\n",
				filepath.Base(res.ImagePath), escapeCell(res.ExpectedText), escapeCell(res.ProducedText), res.Similarity, mark)
		}
		if truncated {
			fmt.Fprintf(b, "\n_Showing first %d of %d results. The JSON report contains all results._\n", maxTableRows, len(dir.Results))
		}
		b.WriteString("\n")
	}
}

func (g *Generator) writeMethodology(b *strings.Builder) {
	b.WriteString("## Methodology\n\n")
	b.WriteString("Similarity is computed as `1 - editdistance/maxlen` over the raw expected and produced strings, ")
	b.WriteString("floored at zero, where `editdistance` is the Levenshtein distance and `maxlen` the longer string's character count. ")
	b.WriteString("An exact match requires byte-for-byte equality. ")
	b.WriteString("Dataset figures weight each directory's mean by its image count, so every image counts equally.\n\n")
}

func (g *Generator) writeConclusion(b *strings.Builder, summary models.DatasetSummary) {
	b.WriteString("## Conclusion\n\n")
	switch {
	case summary.OverallSimilarity >= 0.95:
		fmt.Fprintf(b, "Accuracy is excellent: mean similarity %.4f across %d images. The model reproduces the ground truth almost verbatim.\n", summary.OverallSimilarity, summary.TotalImages)
	case summary.OverallSimilarity >= 0.80:
		fmt.Fprintf(b, "Accuracy is good: mean similarity %.4f across %d images. Most transcriptions are close to the ground truth, with occasional character-level errors.\n", summary.OverallSimilarity, summary.TotalImages)
	default:
		fmt.Fprintf(b, "Accuracy needs improvement: mean similarity %.4f across %d images. Review the per-directory tables for systematic failure patterns.\n", summary.OverallSimilarity, summary.TotalImages)
	}
}

func bandIndex(similarity float64) int {
	for i, band := range accuracyBands {
		if i == 0 {
			if similarity >= band.low {
				return i
			}
			continue
		}
		if similarity >= band.low && similarity < band.high {
			return i
		}
	}
	return len(accuracyBands) - 1
}

func formatDetail(v any) string {
	switch val := v.(type) {
	case string:
		return escapeCell(val)
	case []string:
		return escapeCell(strings.Join(val, ", "))
	default:
		return escapeCell(fmt.Sprintf("%v", val))
	}
}

// escapeCell keeps user-provided text from breaking Markdown table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_", ":", "_")
	out := replacer.Replace(name)
	if out == "" {
		return "model"
	}
	return out
}
