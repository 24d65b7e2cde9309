package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/alphalab/internal/core"
)

func TestOpen(t *testing.T) {
	store, err := Open(TypeLocalFS, filepath.Join(t.TempDir(), "archive"), S3Config{})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, store)

	store, err = Open(TypeS3, "", S3Config{Bucket: "results", Region: "us-east-1"})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, store)

	_, err = Open(TypeLocalFS, "", S3Config{})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = Open(TypeS3, "", S3Config{})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = Open("ftp", "x", S3Config{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
