package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "conversations.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	state := filepath.Join(dir, "state")
	if err := os.MkdirAll(filepath.Join(state, "vlog"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(state, "MANIFEST"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(state, "vlog", "000001.vlog"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file", []string{db}, 5},
		{"nested_dir", []string{state}, 3},
		{"file_and_dir", []string{db, state}, 8},
		{"missing_skipped", []string{db, filepath.Join(dir, "nope"), state}, 8},
		{"empty_skipped", []string{"", db}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
