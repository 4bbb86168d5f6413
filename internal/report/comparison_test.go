package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-ocr-eval/pkg/models"
)

func comparisonSummaries() []models.DatasetSummary {
	ts := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	return []models.DatasetSummary{
		{
			ModelName:             "Tesseract",
			Timestamp:             ts,
			TotalImages:           10,
			OverallSimilarity:     0.72,
			OverallExactMatchRate: 0.5,
			DirectoryResults: []models.DirectoryResult{
				{DirectoryPath: "data/batch_a", ImageCount: 6, MeanSimilarity: 0.7, ExactMatchRate: 0.5},
				{DirectoryPath: "data/batch_b", ImageCount: 4, MeanSimilarity: 0.75, ExactMatchRate: 0.5},
			},
			TechnicalDetails: map[string]any{"average_processing_time_sec": 0.12},
		},
		{
			ModelName:             "test-vlm",
			Timestamp:             ts.Add(time.Minute),
			TotalImages:           6,
			OverallSimilarity:     0.91,
			OverallExactMatchRate: 0.8,
			DirectoryResults: []models.DirectoryResult{
				// Only one directory succeeded for this model.
				{DirectoryPath: "data/batch_a", ImageCount: 6, MeanSimilarity: 0.91, ExactMatchRate: 0.8},
			},
			TechnicalDetails: map[string]any{"average_processing_time_sec": 2.4},
		},
	}
}

func TestRenderComparisonMarkdown(t *testing.T) {
	g := testGenerator()
	out := g.RenderComparisonMarkdown(comparisonSummaries())

	for _, want := range []string{
		"# OCR Model Comparison Report",
		"**Models:** Tesseract, test-vlm",
		"## Overall Performance",
		"| Tesseract | 10 | 0.7200 (72.00%) | 0.5000 (50.00%) | 0.120s |",
		"| test-vlm | 6 | 0.9100 (91.00%) | 0.8000 (80.00%) | 2.400s |",
		"## Performance by Directory",
		"### batch_a",
		"### batch_b",
		"**Best overall performance:** test-vlm",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("comparison report missing %q", want)
		}
	}

	// The generation time shown is the latest summary timestamp.
	if !strings.Contains(out, "2024-03-15 10:31:45") {
		t.Error("comparison report header should use the latest summary timestamp")
	}
}

func TestRenderComparisonMarkdownFillsMissingDirectories(t *testing.T) {
	g := testGenerator()
	out := g.RenderComparisonMarkdown(comparisonSummaries())

	// test-vlm has no batch_b result; its row is dashes inside that section.
	section := out[strings.Index(out, "### batch_b"):]
	if !strings.Contains(section, "| test-vlm | - | - | - |") {
		t.Error("missing-directory row should be rendered as dashes")
	}
}

func TestRenderComparisonMarkdownIsDeterministic(t *testing.T) {
	g := testGenerator()
	summaries := comparisonSummaries()
	if g.RenderComparisonMarkdown(summaries) != g.RenderComparisonMarkdown(summaries) {
		t.Error("two renders of the same summaries differ")
	}
}

func TestSaveComparison(t *testing.T) {
	g := testGenerator()

	t.Run("Default base name", func(t *testing.T) {
		dir := t.TempDir()
		path, err := g.SaveComparison(comparisonSummaries(), dir, "")
		if err != nil {
			t.Fatalf("SaveComparison: %v", err)
		}
		want := filepath.Join(dir, "model_comparison.md")
		if path != want {
			t.Errorf("path = %q, want %q", path, want)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("written file missing: %v", err)
		}
	})

	t.Run("Custom base name", func(t *testing.T) {
		dir := t.TempDir()
		path, err := g.SaveComparison(comparisonSummaries(), dir, "weekly_compare")
		if err != nil {
			t.Fatalf("SaveComparison: %v", err)
		}
		if filepath.Base(path) != "weekly_compare.md" {
			t.Errorf("path = %q, want weekly_compare.md", path)
		}
	})

	t.Run("Fewer than two summaries errors", func(t *testing.T) {
		if _, err := g.SaveComparison(comparisonSummaries()[:1], t.TempDir(), ""); err == nil {
			t.Error("expected error for single-model comparison")
		}
	})
}
