package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LabelEntry maps one image filename to its expected transcription.
type LabelEntry struct {
	ImageName    string
	ExpectedText string
}

// annotation is one element of the JSON array on an annotation line. Fields
// other than the transcription (bounding points, difficulty flags) are
// ignored.
type annotation struct {
	Transcription string `json:"transcription"`
}

// ParseLabelFile reads a directory's annotation file and returns the usable
// labels in file order. Each non-blank line is
// "<image-path>\t<JSON array of annotation objects>"; the basename of the
// image path is the key and only the first object's transcription is used.
// Malformed lines and empty transcriptions are dropped, never fatal: a bad
// line is logged and parsing continues. A duplicate basename updates the
// earlier entry in place.
func ParseLabelFile(path string, log *logrus.Logger) ([]LabelEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label file: %w", err)
	}
	defer f.Close()

	var entries []LabelEntry
	index := make(map[string]int)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			log.WithFields(logrus.Fields{
				"file": path,
				"line": lineNum,
			}).Warn("Annotation line is not tab-separated, skipping")
			continue
		}

		imageName := filepath.Base(parts[0])

		var annotations []annotation
		if err := json.Unmarshal([]byte(parts[1]), &annotations); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"file": path,
				"line": lineNum,
			}).Warn("Failed to parse annotation JSON, skipping")
			continue
		}

		if len(annotations) == 0 || annotations[0].Transcription == "" {
			// No ground truth for this image.
			continue
		}

		if i, ok := index[imageName]; ok {
			entries[i].ExpectedText = annotations[0].Transcription
			continue
		}
		index[imageName] = len(entries)
		entries = append(entries, LabelEntry{
			ImageName:    imageName,
			ExpectedText: annotations[0].Transcription,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}

	return entries, nil
}
