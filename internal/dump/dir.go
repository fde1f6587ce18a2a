package dump

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout names the per-run subdirectory (local time).
const TimestampLayout = "20060102_150405"

// DefaultOutDir is used when no output directory is configured.
const DefaultOutDir = "./backups"

// PrepareDir resolves the output directory, appending now formatted with
// TimestampLayout when timestamp is set, and creates it with its parents.
// stamp is the appended component, empty when timestamp is false.
func PrepareDir(base string, timestamp bool, now time.Time) (dir, stamp string, err error) {
	dir = strings.TrimSpace(base)
	if dir == "" {
		dir = DefaultOutDir
	}
	if timestamp {
		stamp = now.Local().Format(TimestampLayout)
		dir = filepath.Join(dir, stamp)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", &FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	return dir, stamp, nil
}
