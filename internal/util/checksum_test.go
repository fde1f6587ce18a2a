package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs_snap1")
	require.NoError(t, os.WriteFile(path, []byte("ABC"), 0o644))

	d, err := SHA256File(path)
	require.NoError(t, err)
	assert.Equal(t, "b5d4045c3f466fa91fe2cc6abe79232a1a57cdf104f7a26e716e0a1e2789df78", d.Hex)
	assert.Equal(t, int64(3), d.Size)
}

func TestSHA256File_Missing(t *testing.T) {
	_, err := SHA256File(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
