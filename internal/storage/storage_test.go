package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3StorageURL(t *testing.T) {
	s, err := NewS3Storage(S3Config{Bucket: "media", Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/media/a.png", s.URL("media/a.png"))

	s, err = NewS3Storage(S3Config{Bucket: "media", Region: "auto", Endpoint: "https://r2.example", PublicURL: "https://cdn.example/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a.png", s.URL("a.png"))
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage()
	require.NoError(t, m.Save(context.Background(), "k", strings.NewReader("data"), "text/plain"))
	assert.True(t, m.Has("k"))
	assert.Equal(t, "data", string(m.Objects["k"]))
	body, contentType, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "data", string(body))
	assert.Equal(t, "text/plain", contentType)
	require.NoError(t, m.Delete(context.Background(), "k"))
	assert.False(t, m.Has("k"))
	_, _, ok = m.Get("k")
	assert.False(t, ok)
}
