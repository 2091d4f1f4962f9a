package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// With the region set, presigning is computed locally and no server is contacted.
func TestPresignedURL(t *testing.T) {
	s, err := NewMinIOStorage(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "admin",
		SecretKey: "password123",
		Bucket:    "media",
		Region:    "us-east-1",
		URLExpiry: 15 * time.Minute,
	})
	require.NoError(t, err)

	raw, err := s.PresignedURL(context.Background(), "courses/react/intro.mp4")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/media/courses/react/intro.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
