package fs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// writeFileAtomic replaces filename with data in one step: readers see
// either the old content or the new one, never a partial write. The file
// keeps its current permissions, or gets perm when it is created.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	if info, err := os.Stat(filename); err == nil {
		perm = info.Mode().Perm()
	}
	if err := atomic.WriteFile(filename, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := os.Chmod(filename, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", filename, err)
	}
	return nil
}

// IsTransient reports whether path names a lock file or an editor swap
// file. Watchers ignore these.
func IsTransient(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, LockSuffix) ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, "~")
}
