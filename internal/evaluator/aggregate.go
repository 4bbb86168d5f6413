package evaluator

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"go-ocr-eval/pkg/models"
)

// Aggregate folds directory results into a dataset summary. The overall
// similarity is the image-count-weighted mean of the per-directory means; a
// directory with more images pulls the figure proportionally harder. With
// zero total images both overall figures are 0.0 rather than a division
// error. Technical details are stored verbatim.
func Aggregate(modelName string, dirResults []models.DirectoryResult, technicalDetails map[string]any, timestamp time.Time) models.DatasetSummary {
	totalImages := 0
	totalExactMatches := 0
	means := make([]float64, 0, len(dirResults))
	weights := make([]float64, 0, len(dirResults))

	for _, dr := range dirResults {
		totalImages += dr.ImageCount
		totalExactMatches += dr.ExactMatchCount
		means = append(means, dr.MeanSimilarity)
		weights = append(weights, float64(dr.ImageCount))
	}

	overallSimilarity := 0.0
	overallExactMatchRate := 0.0
	if totalImages > 0 {
		overallSimilarity = stat.Mean(means, weights)
		overallExactMatchRate = float64(totalExactMatches) / float64(totalImages)
	}

	if technicalDetails == nil {
		technicalDetails = make(map[string]any)
	}

	return models.DatasetSummary{
		ModelName:             modelName,
		Timestamp:             timestamp,
		TotalImages:           totalImages,
		OverallSimilarity:     overallSimilarity,
		OverallExactMatchRate: overallExactMatchRate,
		DirectoryResults:      dirResults,
		TechnicalDetails:      technicalDetails,
	}
}
