package archive

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/alphalab/internal/core"
)

func TestS3Storage_ObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "results/a.json", "results/a.json"},
		{"alphalab", "results/a.json", "alphalab/results/a.json"},
		{"/alphalab/", "results/a.json", "alphalab/results/a.json"},
		{"alphalab", "../../etc/passwd", "alphalab/etc/passwd"},
		{"alphalab", "", "alphalab/"},
	}

	for _, tt := range tests {
		s, err := NewS3(S3Config{Bucket: "b", Prefix: tt.prefix})
		require.NoError(t, err)
		key := s.objectKey(tt.path)
		assert.Equal(t, tt.want, key, "prefix %q path %q", tt.prefix, tt.path)
		if tt.path != "" && tt.path[0] != '.' {
			assert.Equal(t, tt.path, s.archivePath(key))
		}
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("results/x.json"))
	assert.Equal(t, "image/svg+xml", contentType("charts/x.svg"))
	assert.Equal(t, "application/octet-stream", contentType("x"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("connection reset")))
	assert.False(t, isNotFound(nil))
}

func TestNewS3(t *testing.T) {
	s, err := NewS3(S3Config{Bucket: "results", Endpoint: "http://localhost:9000", Prefix: "alphalab/"})
	require.NoError(t, err)
	assert.Equal(t, "results", s.bucket)
	assert.Equal(t, "s3://results/alphalab/a.json", s.location("a.json"))
	assert.Equal(t, defaultRegion, s.client.Options().Region)
	assert.True(t, s.client.Options().UsePathStyle)

	_, err = NewS3(S3Config{})
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}
