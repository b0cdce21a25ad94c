// Package sweeper deletes derived artifacts that outlived the retention
// window.
package sweeper

import (
	"os"
	"path/filepath"
	"time"

	"github.com/wb-go/wbf/zlog"
)

type Sweeper struct {
	dirs []string
}

func New(dirs []string) *Sweeper {
	return &Sweeper{dirs: dirs}
}

// Sweep scans every artifact dir non-recursively and deletes files whose
// last-modified time is strictly older than now-maxAge. Per-file and
// per-directory I/O errors are logged and skipped, never aborting the sweep.
// Returns the total count of successful deletions.
func (s *Sweeper) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("dir", dir).Msg("Sweep failed to list artifact dir")
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				zlog.Logger.Warn().Err(err).Str("file", entry.Name()).Msg("Sweep failed to stat artifact")
				continue
			}

			if !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				zlog.Logger.Warn().Err(err).Str("file", path).Msg("Sweep failed to delete expired artifact")
				continue
			}
			deleted++
		}
	}

	return deleted
}
