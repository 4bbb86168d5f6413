package scoring

import (
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Score quantifies how close a produced transcription is to the expected one.
type Score struct {
	// Similarity is the normalized edit-distance score in [0,1].
	Similarity float64
	// ExactMatch is true iff the two strings are identical code-point
	// sequences. ExactMatch implies Similarity == 1.0; the reverse only
	// holds for identical strings.
	ExactMatch bool
	// WER is the word error rate over whitespace-split tokens.
	WER float64
	// CER is the character error rate: edit distance over the expected
	// length, capped at 1.
	CER float64
}

// Compare scores produced text against expected text. No case folding or
// whitespace normalization happens here; if a backend wants normalized
// output it must normalize before returning text.
func Compare(expected, produced string) Score {
	s := Score{
		Similarity: Similarity(expected, produced),
		ExactMatch: expected == produced,
	}

	if expected != "" || produced != "" {
		s.WER = wordErrorRate(expected, produced)
		s.CER = characterErrorRate(expected, produced)
	}

	return s
}

// Similarity computes the normalized accuracy score:
//   - both strings empty: 1.0 (vacuously correct)
//   - exactly one empty: 0.0
//   - identical: 1.0
//   - otherwise 1 - distance/max(len), floored at 0
//
// Distance is rune-level Levenshtein with uniform unit costs.
func Similarity(expected, produced string) float64 {
	if expected == "" && produced == "" {
		return 1.0
	}
	if expected == "" || produced == "" {
		return 0.0
	}
	if expected == produced {
		return 1.0
	}

	distance := levenshtein.Distance(expected, produced)
	maxLen := len([]rune(expected))
	if l := len([]rune(produced)); l > maxLen {
		maxLen = l
	}

	score := 1.0 - float64(distance)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

func wordErrorRate(expected, produced string) float64 {
	ref := strings.Fields(expected)
	hyp := strings.Fields(produced)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(ref, hyp)
	if rate > 1 {
		rate = 1
	}
	return rate
}

func characterErrorRate(expected, produced string) float64 {
	refLen := len([]rune(expected))
	if refLen == 0 {
		if produced == "" {
			return 0
		}
		return 1
	}
	rate := float64(levenshtein.Distance(expected, produced)) / float64(refLen)
	if rate > 1 {
		rate = 1
	}
	return rate
}
