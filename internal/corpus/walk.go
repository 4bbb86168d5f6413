package corpus

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultWalkDepth is how many directory levels below the dataset root are
// searched for labeled directories. The annotation layout contract only
// recognizes two levels; deeper nesting is invisible by design of the corpus
// format, not an implementation accident.
const DefaultWalkDepth = 2

// FindLabeledDirectories walks root for directories containing labelFileName
// and returns them in deterministic (lexical) order. A first-level directory
// that carries the annotation file directly is a labeled directory; otherwise
// its own child directories are checked, down to maxDepth levels. Directories
// below maxDepth are not searched.
func FindLabeledDirectories(root, labelFileName string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultWalkDepth
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root %s is not a directory", root)
	}

	var labeled []string
	collect(root, labelFileName, maxDepth, &labeled)
	return labeled, nil
}

func collect(dir, labelFileName string, depth int, out *[]string) {
	if depth == 0 {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if hasLabelFile(sub, labelFileName) {
			*out = append(*out, sub)
			continue
		}
		collect(sub, labelFileName, depth-1, out)
	}
}

func hasLabelFile(dir, labelFileName string) bool {
	info, err := os.Stat(filepath.Join(dir, labelFileName))
	return err == nil && info.Mode().IsRegular()
}
