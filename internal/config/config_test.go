package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRESIGN_ENDPOINT", "http://presigner:8090/")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://presigner:8090", cfg.PresignEndpoint)
	assert.Equal(t, 10*time.Second, cfg.PresignTimeout)
	assert.Equal(t, 60*time.Second, cfg.TransferTimeout)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 1, cfg.UploadConcurrency)
	assert.Equal(t, "minio", cfg.StorageBackend)
	assert.Zero(t, cfg.OwnerCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("UPLOAD_CONCURRENCY", "4")
	t.Setenv("STORAGE_BACKEND", " S3 ")
	t.Setenv("TRANSFER_TIMEOUT", "2m")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 4, cfg.UploadConcurrency)
	assert.Equal(t, "s3", cfg.StorageBackend)
	assert.Equal(t, 2*time.Minute, cfg.TransferTimeout)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PRESIGN_TIMEOUT", "soon")

	_, _, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PresignEndpoint:   "http://presigner",
			PresignTimeout:    time.Second,
			TransferTimeout:   time.Second,
			MaxUploadBytes:    1,
			MaxFilesPerUpload: 1,
			UploadConcurrency: 1,
			OwnerCacheSize:    1,
			PresignTTL:        time.Minute,
			ReclaimInterval:   time.Minute,
			ReclaimBatchSize:  1,
			StorageBackend:    "minio",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero presign timeout", mutate: func(c *Config) { c.PresignTimeout = 0 }, wantErr: "PRESIGN_TIMEOUT"},
		{name: "zero transfer timeout", mutate: func(c *Config) { c.TransferTimeout = 0 }, wantErr: "TRANSFER_TIMEOUT"},
		{name: "no endpoint", mutate: func(c *Config) { c.PresignEndpoint = "" }, wantErr: "PRESIGN_ENDPOINT"},
		{name: "zero concurrency", mutate: func(c *Config) { c.UploadConcurrency = 0 }, wantErr: "UPLOAD_CONCURRENCY"},
		{name: "negative grace", mutate: func(c *Config) { c.ReclaimGrace = -time.Second }, wantErr: "RECLAIM_GRACE"},
		{name: "negative cache ttl", mutate: func(c *Config) { c.OwnerCacheTTL = -time.Second }, wantErr: "OWNER_CACHE_TTL"},
		{name: "cache without size", mutate: func(c *Config) {
			c.OwnerCacheTTL = time.Second
			c.OwnerCacheSize = 0
		}, wantErr: "OWNER_CACHE_SIZE"},
		{name: "cache disabled ignores size", mutate: func(c *Config) { c.OwnerCacheSize = 0 }},
		{name: "production default secret", mutate: func(c *Config) {
			c.AppEnv = "production"
			c.JWTSecret = defaultJWTSecret
		}, wantErr: "JWT_SECRET"},
		{name: "production real secret", mutate: func(c *Config) {
			c.AppEnv = "production"
			c.JWTSecret = "x"
		}},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "gcs" }, wantErr: "STORAGE_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
