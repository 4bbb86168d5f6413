package models

import "time"

// EvaluationResult is the scored outcome for a single labeled image.
// Invariant: ExactMatch implies Similarity == 1.0.
type EvaluationResult struct {
	ImagePath    string  `json:"image_path"`
	ExpectedText string  `json:"expected_text"`
	ProducedText string  `json:"produced_text"`
	Similarity   float64 `json:"similarity"`
	ExactMatch   bool    `json:"exact_match"`

	// Supplementary error rates for quality assessment
	WER float64 `json:"word_error_rate"`
	CER float64 `json:"character_error_rate"`
}

// DirectoryResult aggregates the results of one labeled directory.
// A directory that yields zero usable results is never represented as a
// DirectoryResult; it is dropped by the evaluator instead.
type DirectoryResult struct {
	DirectoryPath   string             `json:"directory_path"`
	ImageCount      int                `json:"image_count"`
	MeanSimilarity  float64            `json:"mean_similarity"`
	ExactMatchCount int                `json:"exact_match_count"`
	ExactMatchRate  float64            `json:"exact_match_rate"`
	Results         []EvaluationResult `json:"results"`
}

// DatasetSummary is the whole-dataset rollup handed to the report renderer.
// OverallSimilarity is the image-count-weighted mean of the per-directory
// means, not a naive mean of means.
type DatasetSummary struct {
	ModelName             string            `json:"model_name"`
	Timestamp             time.Time         `json:"timestamp"`
	TotalImages           int               `json:"total_images"`
	OverallSimilarity     float64           `json:"overall_similarity"`
	OverallExactMatchRate float64           `json:"overall_exact_match_rate"`
	DirectoryResults      []DirectoryResult `json:"directory_results"`
	TechnicalDetails      map[string]any    `json:"technical_details"`
}
