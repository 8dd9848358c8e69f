package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, "attachment", contentDisposition(""))
	assert.Equal(t, `attachment; filename=report.pdf`, contentDisposition("report.pdf"))
	assert.Equal(t, `attachment; filename="my report.pdf"`, contentDisposition("my report.pdf"))

	encoded := contentDisposition("보고서.pdf")
	assert.True(t, strings.HasPrefix(encoded, "attachment; filename*=utf-8''"), encoded)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "", endpointURL("", false))
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", endpointURL("s3.example.com/", true))
	assert.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "ftp"}, zerolog.Nop())
	assert.Error(t, err)
}

// S3 presigning is offline: no request reaches the endpoint.
func TestS3Storage_Presign(t *testing.T) {
	s, err := NewS3Storage(context.Background(), Options{
		Endpoint:   "localhost:9000",
		Region:     "us-east-1",
		AccessKey:  "AKIDEXAMPLE",
		SecretKey:  "secret",
		Bucket:     "attachments",
		PublicBase: "http://cdn.local/attachments/",
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()

	put, err := s.PresignPut(ctx, "post-file/42/abc.png", "image/png", 5*time.Minute)
	require.NoError(t, err)
	pu, err := url.Parse(put)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", pu.Host)
	assert.Equal(t, "/attachments/post-file/42/abc.png", pu.Path)
	assert.Equal(t, "300", pu.Query().Get("X-Amz-Expires"))

	get, err := s.PresignGet(ctx, "post-file/42/abc.png", "cat.png", time.Minute)
	require.NoError(t, err)
	gu, err := url.Parse(get)
	require.NoError(t, err)
	assert.Equal(t, "attachment; filename=cat.png", gu.Query().Get("response-content-disposition"))

	assert.Equal(t, "http://cdn.local/attachments/post-file/42/abc.png", s.PublicURL("post-file/42/abc.png"))
	assert.Equal(t, "http://cdn.local/attachments/post-file/42/a%23b%3Fc%20d", s.PublicURL("post-file/42/a#b?c d"))
}

func TestEscapeKey(t *testing.T) {
	tests := map[string]string{
		"post-file/42/abc.png": "post-file/42/abc.png",
		"profile/7/x y.png":    "profile/7/x%20y.png",
		"post-file/1/a#b.txt":  "post-file/1/a%23b.txt",
		"post-file/1/q?.txt":   "post-file/1/q%3F.txt",
		"post-file/1/100%.txt": "post-file/1/100%25.txt",
	}
	for key, want := range tests {
		assert.Equal(t, want, escapeKey(key), key)
	}
}
