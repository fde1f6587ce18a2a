package dump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareDir_NoTimestamp(t *testing.T) {
	base := filepath.Join(t.TempDir(), "backups")

	dir, stamp, err := PrepareDir(base, false, time.Now())
	require.NoError(t, err)
	assert.Equal(t, base, dir)
	assert.Empty(t, stamp)
	assert.DirExists(t, dir)
}

func TestPrepareDir_TimestampCreatesNestedDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "deep", "backups")
	now := time.Date(2025, 3, 7, 9, 5, 2, 0, time.Local)

	dir, stamp, err := PrepareDir(base, true, now)
	require.NoError(t, err)
	assert.Equal(t, "20250307_090502", stamp)
	assert.Equal(t, filepath.Join(base, "20250307_090502"), dir)
	assert.DirExists(t, dir)
}

func TestPrepareDir_RelativeDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	now := time.Now()

	dir, stamp, err := PrepareDir("./backups", true, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("./backups", now.Format(TimestampLayout)), dir)
	assert.Regexp(t, `^\d{8}_\d{6}$`, stamp)
	assert.DirExists(t, dir)
}

func TestPrepareDir_EmptyBaseUsesDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	dir, _, err := PrepareDir("", false, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DefaultOutDir, dir)
	assert.DirExists(t, DefaultOutDir)
}

func TestPrepareDir_FailsWhenParentIsAFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, _, err := PrepareDir(filepath.Join(blocker, "backups"), false, time.Now())
	var fe *FilesystemError
	require.True(t, errors.As(err, &fe), "want *FilesystemError, got %T", err)
	assert.Equal(t, "mkdir", fe.Op)
}
