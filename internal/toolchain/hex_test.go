package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// validHex holds four data bytes at address 0 followed by an EOF record.
const validHex = ":0400000001020304F2\n:00000001FF\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sketch.hex")
	writeFile(t, path, validHex)

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}
	if img.Size != 4 {
		t.Errorf("LoadImage() size = %d, want 4", img.Size)
	}
	if img.Address != 0 {
		t.Errorf("LoadImage() address = 0x%x, want 0", img.Address)
	}
	if img.Segments != 1 {
		t.Errorf("LoadImage() segments = %d, want 1", img.Segments)
	}
}

func TestLoadImage_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "this is not intel hex\n"},
		{"bad checksum", ":0400000001020304F3\n:00000001FF\n"},
		{"eof only", ":00000001FF\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sketch.hex")
			writeFile(t, path, tt.content)

			_, err := LoadImage(path)
			if !errors.Is(err, ErrInvalidImage) {
				t.Errorf("LoadImage() error = %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestLoadImage_Missing(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "missing.hex"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadImage() error = %v, want os.ErrNotExist", err)
	}
}
