package presign

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestIssuePresignedPut_SendsContract(t *testing.T) {
	var got map[string]any
	c := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{
			"uploadUrl":     "http://store.local/put?sig=1",
			"fileUrl":       "http://cdn.local/post-file/42/a.png",
			"key":           "post-file/42/a.png",
			"expireSeconds": 300,
		})
	})

	parent := int64(42)
	ticket, err := c.IssuePresignedPut(context.Background(), PutRequest{
		Key:         "post-file/42/a.png",
		ContentType: "image/png",
		ContentSize: 10,
		UploaderID:  7,
		ParentID:    &parent,
		Category:    "post-file",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://store.local/put?sig=1", ticket.UploadURL)
	assert.Equal(t, "http://cdn.local/post-file/42/a.png", ticket.FileURL)
	assert.Equal(t, 300, ticket.ExpireSeconds)

	assert.Equal(t, "post-file/42/a.png", got["key"])
	assert.Equal(t, "image/png", got["contentType"])
	assert.EqualValues(t, 10, got["contentSize"])
	assert.Equal(t, "7", got["uploaderId"])
	assert.EqualValues(t, 42, got["parentId"])
	assert.Equal(t, "post-file", got["fileCategory"])
}

func TestIssuePresignedPut_NullParent(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeJSON(w, map[string]any{"uploadUrl": "https://s/u", "fileUrl": "https://s/f"})
	})

	_, err := c.IssuePresignedPut(context.Background(), PutRequest{Key: "profile/7/a.png", UploaderID: 7, Category: "profile"})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw["parentId"]))
}

func TestIssuePresignedPut_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"undecodable", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		}},
		{"undecodable with json type", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"uploadUrl":`)
		}},
		{"non-2xx without body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		}},
		{"missing uploadUrl", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"fileUrl": "http://cdn/f"})
		}},
		{"relative uploadUrl", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"uploadUrl": "/put", "fileUrl": "http://cdn/f"})
		}},
		{"non-http uploadUrl", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"uploadUrl": "ftp://store/put", "fileUrl": "http://cdn/f"})
		}},
		{"missing fileUrl", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"uploadUrl": "http://store/put"})
		}},
		{"key mismatch", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"uploadUrl": "http://store/put", "fileUrl": "http://cdn/f", "key": "other"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newIssuer(t, tt.handler)
			ticket, err := c.IssuePresignedPut(context.Background(), PutRequest{Key: "post-file/1/a.txt", Category: "post-file"})
			assert.Error(t, err)
			assert.Nil(t, ticket)
		})
	}
}

func TestIssuePresignedPut_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, zerolog.Nop())
	_, err := c.IssuePresignedPut(context.Background(), PutRequest{Key: "k"})
	assert.Error(t, err)
}

func TestIssuePresignedPut_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, zerolog.Nop())
	_, err := c.IssuePresignedPut(context.Background(), PutRequest{Key: "k"})
	assert.Error(t, err)
}

func TestIssuePresignedGet(t *testing.T) {
	var got getBody
	c := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/download", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{"downloadUrl": "http://store/get?sig=2", "key": got.Key, "expireSeconds": 60})
	})

	ticket, err := c.IssuePresignedGet(context.Background(), GetRequest{
		Key: "post-file/42/a.png", Category: "post-file", DownloadName: "cat.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://store/get?sig=2", ticket.DownloadURL)
	assert.Equal(t, getBody{Key: "post-file/42/a.png", FileCategory: "post-file", DownloadName: "cat.png"}, got)
}

func TestIssuePresignedGet_MissingURL(t *testing.T) {
	c := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"key": "k"})
	})
	_, err := c.IssuePresignedGet(context.Background(), GetRequest{Key: "k"})
	assert.Error(t, err)
}
