package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "go-ocr-eval/internal/errors"
	"go-ocr-eval/pkg/models"
)

// DefaultComparisonName is the base file name for comparison reports.
const DefaultComparisonName = "model_comparison"

// RenderComparisonMarkdown renders a side-by-side report over several models
// evaluated against the same corpus. Like the single-model renderer it is a
// pure function of its input; the generation time shown is the latest summary
// timestamp.
func (g *Generator) RenderComparisonMarkdown(summaries []models.DatasetSummary) string {
	var b strings.Builder

	names := make([]string, len(summaries))
	latest := summaries[0].Timestamp
	for i, s := range summaries {
		names[i] = s.ModelName
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}

	b.WriteString("# OCR Model Comparison Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", latest.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Models:** %s\n\n", strings.Join(names, ", "))

	b.WriteString("## Overall Performance\n\n")
	b.WriteString("| Model | Images | Mean similarity | Exact match rate | Avg time per image |\n")
	b.WriteString("|-------|--------|-----------------|------------------|--------------------|\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "| %s | %d | %.4f (%.2f%%) | %.4f (%.2f%%) | %.3fs |\n",
			escapeCell(s.ModelName), s.TotalImages,
			s.OverallSimilarity, s.OverallSimilarity*100,
			s.OverallExactMatchRate, s.OverallExactMatchRate*100,
			averageProcessingTime(s))
	}
	b.WriteString("\n")

	g.writeDirectoryComparison(&b, summaries)
	g.writeComparisonConclusion(&b, summaries)

	return b.String()
}

// SaveComparison writes the comparison report into outputDir and returns the
// written path. An empty baseName uses DefaultComparisonName. At least two
// summaries are required; comparing a model against nothing is meaningless.
func (g *Generator) SaveComparison(summaries []models.DatasetSummary, outputDir, baseName string) (string, error) {
	if len(summaries) < 2 {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("comparison needs at least two summaries, got %d", len(summaries)), nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", apperrors.NewReportError(fmt.Sprintf("failed to create output directory %s", outputDir), err)
	}

	if baseName == "" {
		baseName = DefaultComparisonName
	}
	path := filepath.Join(outputDir, baseName+".md")
	if err := os.WriteFile(path, []byte(g.RenderComparisonMarkdown(summaries)), 0o644); err != nil {
		return "", apperrors.NewReportError(fmt.Sprintf("failed to write %s", path), err)
	}

	g.log.WithField("path", path).Info("Comparison report written")
	return path, nil
}

// writeDirectoryComparison renders one table per directory found in any
// summary; a model that produced no result for a directory gets dashes.
func (g *Generator) writeDirectoryComparison(b *strings.Builder, summaries []models.DatasetSummary) {
	seen := make(map[string]struct{})
	var dirNames []string
	for _, s := range summaries {
		for _, dr := range s.DirectoryResults {
			name := filepath.Base(dr.DirectoryPath)
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				dirNames = append(dirNames, name)
			}
		}
	}
	if len(dirNames) == 0 {
		return
	}
	sort.Strings(dirNames)

	b.WriteString("## Performance by Directory\n\n")
	for _, dirName := range dirNames {
		fmt.Fprintf(b, "### %s\n\n", dirName)
		b.WriteString("| Model | Images | Mean similarity | Exact match rate |\n")
		b.WriteString("|-------|--------|-----------------|------------------|\n")

		for _, s := range summaries {
			dr, ok := directoryByName(s, dirName)
			if !ok {
				fmt.Fprintf(b, "| %s | - | - | - |\n", escapeCell(s.ModelName))
				continue
			}
			fmt.Fprintf(b, "| %s | %d | %.4f (%.2f%%) | %.4f (%.2f%%) |\n",
				escapeCell(s.ModelName), dr.ImageCount,
				dr.MeanSimilarity, dr.MeanSimilarity*100,
				dr.ExactMatchRate, dr.ExactMatchRate*100)
		}
		b.WriteString("\n")
	}
}

func (g *Generator) writeComparisonConclusion(b *strings.Builder, summaries []models.DatasetSummary) {
	best := summaries[0]
	for _, s := range summaries[1:] {
		if s.OverallSimilarity > best.OverallSimilarity {
			best = s
		}
	}

	b.WriteString("## Conclusion\n\n")
	fmt.Fprintf(b, "**Best overall performance:** %s\n\n", best.ModelName)
	fmt.Fprintf(b, "- Mean similarity: %.4f (%.2f%%)\n", best.OverallSimilarity, best.OverallSimilarity*100)
	fmt.Fprintf(b, "- Exact match rate: %.4f (%.2f%%)\n", best.OverallExactMatchRate, best.OverallExactMatchRate*100)
}

func directoryByName(s models.DatasetSummary, name string) (models.DirectoryResult, bool) {
	for _, dr := range s.DirectoryResults {
		if filepath.Base(dr.DirectoryPath) == name {
			return dr, true
		}
	}
	return models.DirectoryResult{}, false
}

func averageProcessingTime(s models.DatasetSummary) float64 {
	if v, ok := s.TechnicalDetails["average_processing_time_sec"].(float64); ok {
		return v
	}
	return 0
}
