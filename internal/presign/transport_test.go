package presign

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferBytes(t *testing.T) {
	var (
		gotMethod string
		gotType   string
		gotBody   []byte
		gotLen    int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotLen = r.ContentLength
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport(time.Second, zerolog.Nop())
	err := tr.TransferBytes(context.Background(), srv.URL+"/bucket/key?sig=x", "image/png", []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, int64(9), gotLen)
	assert.Equal(t, "png-bytes", string(gotBody))
}

func TestTransferBytes_NoContentIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewTransport(time.Second, zerolog.Nop()).TransferBytes(context.Background(), srv.URL, "text/plain", []byte("x"))
	assert.NoError(t, err)
}

func TestTransferBytes_Failures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		err := NewTransport(time.Second, zerolog.Nop()).TransferBytes(context.Background(), srv.URL, "text/plain", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 403")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		err := NewTransport(50*time.Millisecond, zerolog.Nop()).TransferBytes(context.Background(), srv.URL, "text/plain", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewTransport(time.Second, zerolog.Nop()).TransferBytes(ctx, srv.URL, "text/plain", []byte("x"))
		assert.Error(t, err)
	})
}
