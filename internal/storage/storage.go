// Package storage wraps the S3-compatible object store behind the issuing service.
// Only the presigner and the reclaimer hold object-store credentials; the api reaches
// objects exclusively through presigned URLs.
package storage

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Storage is the interface for presigning and removing objects.
type Storage interface {
	// PresignPut returns a time-limited URL that accepts a PUT of the object body.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// PresignGet returns a time-limited download URL; the browser saves it as downloadName.
	PresignGet(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error)
	// Delete removes an object identified by key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the durable URL for a given key.
	PublicURL(key string) string
}

// Options selects and configures a backend.
type Options struct {
	Backend    string // "minio" or "s3"
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PublicBase string
}

// New builds the backend named by opts.Backend.
func New(ctx context.Context, opts Options, log zerolog.Logger) (Storage, error) {
	switch opts.Backend {
	case "minio":
		return NewMinioStorage(ctx, opts, log)
	case "s3":
		return NewS3Storage(ctx, opts, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// contentDisposition renders an attachment header for name, RFC 2231-encoding it when needed.
func contentDisposition(name string) string {
	if name == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// escapeKey percent-encodes each segment of key for use in a URL path.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
