package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
)

func rotatedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "modsync.") && e.Name() != "modsync.log" && strings.HasSuffix(e.Name(), ".log") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestRotationBySize(t *testing.T) {
	dir := t.TempDir()
	w, err := logging.NewRotatingWriter(filepath.Join(dir, "modsync.log"), logging.RotationConfig{MaxSize: 100})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	line := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	if got := rotatedFiles(t, dir); len(got) == 0 {
		t.Error("expected at least one rotated file")
	}
}

func TestRotationMaxBackups(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"modsync.2024-01-01-000000.000.log", "modsync.2024-01-02-000000.000.log", "modsync.2024-01-03-000000.000.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w, err := logging.NewRotatingWriter(filepath.Join(dir, "modsync.log"), logging.RotationConfig{MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	if got := rotatedFiles(t, dir); len(got) != 1 {
		t.Errorf("rotated files = %v, want 1", got)
	}
}

func TestRotationDirCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "modsync.log")
	w, err := logging.NewRotatingWriter(path, logging.DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := w.Write([]byte("late\n")); err == nil {
		t.Error("Write() after Close() should fail")
	}
}

func TestRotationSharedLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modsync.log")

	rotating, err := logging.NewRotatingWriter(path, logging.RotationConfig{MaxSize: 100})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer rotating.Close()
	other, err := logging.NewRotatingWriter(path, logging.DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer other.Close()

	line := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 2; i++ {
		if _, err := rotating.Write(line); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if got := rotatedFiles(t, dir); len(got) != 1 {
		t.Fatalf("rotated files = %v, want 1", got)
	}

	if _, err := other.Write([]byte("after rotation\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "after rotation") {
		t.Errorf("active log = %q, want the second writer's line", data)
	}
}

func TestRotationIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "modsync.debug.log")
	if err := os.WriteFile(keep, []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := logging.NewRotatingWriter(filepath.Join(dir, "modsync.log"), logging.RotationConfig{MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated log was pruned: %v", err)
	}
}
