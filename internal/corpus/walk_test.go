package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdirWithLabel(t *testing.T, parts ...string) string {
	t.Helper()
	dir := filepath.Join(parts...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Label.txt"), []byte("img.jpg\t[{\"transcription\": \"X\"}]\n"), 0o644); err != nil {
		t.Fatalf("write label: %v", err)
	}
	return dir
}

func TestFindLabeledDirectories(t *testing.T) {
	root := t.TempDir()

	first := mkdirWithLabel(t, root, "batch_a")
	second := mkdirWithLabel(t, root, "grouped", "batch_b")
	// Three levels down: outside the walk contract, must not be found.
	mkdirWithLabel(t, root, "grouped", "nested", "batch_c")
	// Directory with no annotation file anywhere.
	if err := os.MkdirAll(filepath.Join(root, "unlabeled"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	dirs, err := FindLabeledDirectories(root, "Label.txt", DefaultWalkDepth)
	if err != nil {
		t.Fatalf("FindLabeledDirectories: %v", err)
	}

	want := []string{first, second}
	if len(dirs) != len(want) {
		t.Fatalf("got %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %s, want %s", i, dirs[i], want[i])
		}
	}
}

func TestFindLabeledDirectoriesLabeledDirIsNotDescended(t *testing.T) {
	root := t.TempDir()
	outer := mkdirWithLabel(t, root, "outer")
	// A labeled directory's own subdirectories are part of its corpus, not
	// separate datasets.
	mkdirWithLabel(t, outer, "inner")

	dirs, err := FindLabeledDirectories(root, "Label.txt", DefaultWalkDepth)
	if err != nil {
		t.Fatalf("FindLabeledDirectories: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != outer {
		t.Errorf("got %v, want only %s", dirs, outer)
	}
}

func TestFindLabeledDirectoriesErrors(t *testing.T) {
	t.Run("Missing root", func(t *testing.T) {
		if _, err := FindLabeledDirectories(filepath.Join(t.TempDir(), "absent"), "Label.txt", 2); err == nil {
			t.Error("expected error for missing root")
		}
	})

	t.Run("Root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := FindLabeledDirectories(path, "Label.txt", 2); err == nil {
			t.Error("expected error for non-directory root")
		}
	})
}

func TestFindLabeledDirectoriesEmptyRoot(t *testing.T) {
	dirs, err := FindLabeledDirectories(t.TempDir(), "Label.txt", DefaultWalkDepth)
	if err != nil {
		t.Fatalf("FindLabeledDirectories: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("got %v, want empty", dirs)
	}
}
