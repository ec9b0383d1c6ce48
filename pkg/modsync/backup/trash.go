package backup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// commandTimeout is the maximum time to wait for trash commands.
const commandTimeout = 30 * time.Second

// MoveToTrash moves a pruned backup run to the desktop trash so that it can
// still be recovered by hand. On macOS it asks Finder; on Linux it tries gio
// and then trash-put. Without either it deletes the directory outright.
func MoveToTrash(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot trash %q: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	for _, argv := range trashCommands(absPath) {
		bin, err := exec.LookPath(argv[0])
		if err != nil {
			continue
		}
		if err := exec.CommandContext(ctx, bin, argv[1:]...).Run(); err == nil {
			if _, statErr := os.Stat(absPath); os.IsNotExist(statErr) {
				return nil
			}
		}
	}

	if err := os.RemoveAll(absPath); err != nil {
		return fmt.Errorf("failed to delete %q: %w", absPath, err)
	}
	return nil
}

func trashCommands(path string) [][]string {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, path)
		return [][]string{{"osascript", "-e", script}}
	case "linux":
		return [][]string{{"gio", "trash", path}, {"trash-put", path}}
	default:
		return nil
	}
}
