// Package presigner is a development issuing service: it answers the api's presign
// requests with URLs signed against the configured object store.
package presigner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/response"
)

const maxRequestBytes = 64 << 10

// Categories accepted in fileCategory.
const (
	categoryPostFile = "post-file"
	categoryProfile  = "profile"
)

// Signer is the part of storage.Storage the presigner needs.
type Signer interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type putRequest struct {
	Key          string `json:"key"`
	ContentType  string `json:"contentType"`
	ContentSize  int64  `json:"contentSize"`
	UploaderID   string `json:"uploaderId"`
	ParentID     *int64 `json:"parentId"`
	FileCategory string `json:"fileCategory"`
}

type putResponse struct {
	UploadURL     string `json:"uploadUrl"`
	FileURL       string `json:"fileUrl"`
	Key           string `json:"key"`
	ExpireSeconds int    `json:"expireSeconds"`
}

type getRequest struct {
	Key          string `json:"key"`
	FileCategory string `json:"fileCategory"`
	DownloadName string `json:"downloadName"`
}

type getResponse struct {
	DownloadURL   string `json:"downloadUrl"`
	Key           string `json:"key"`
	ExpireSeconds int    `json:"expireSeconds"`
}

// Handler serves POST /files and POST /files/download.
type Handler struct {
	signer Signer
	ttl    time.Duration
	log    zerolog.Logger
}

// NewHandler creates a Handler issuing URLs valid for ttl.
func NewHandler(signer Signer, ttl time.Duration, log zerolog.Logger) *Handler {
	return &Handler{signer: signer, ttl: ttl, log: log.With().Str("component", "presigner").Logger()}
}

// IssuePut answers a presigned PUT request.
func (h *Handler) IssuePut(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validatePut(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	uploadURL, err := h.signer.PresignPut(r.Context(), req.Key, req.ContentType, h.ttl)
	if err != nil {
		h.log.Error().Err(err).Str("key", req.Key).Msg("presign put")
		response.InternalError(w)
		return
	}

	h.log.Info().
		Str("key", req.Key).
		Str("category", req.FileCategory).
		Str("uploader_id", req.UploaderID).
		Int64("size", req.ContentSize).
		Msg("issued upload url")

	response.JSON(w, http.StatusOK, putResponse{
		UploadURL:     uploadURL,
		FileURL:       h.signer.PublicURL(req.Key),
		Key:           req.Key,
		ExpireSeconds: int(h.ttl.Seconds()),
	})
}

// IssueGet answers a presigned download request.
func (h *Handler) IssueGet(w http.ResponseWriter, r *http.Request) {
	var req getRequest
	if !decode(w, r, &req) {
		return
	}
	if err := checkKey(req.FileCategory, req.Key); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	downloadURL, err := h.signer.PresignGet(r.Context(), req.Key, req.DownloadName, h.ttl)
	if err != nil {
		h.log.Error().Err(err).Str("key", req.Key).Msg("presign get")
		response.InternalError(w)
		return
	}

	response.JSON(w, http.StatusOK, getResponse{
		DownloadURL:   downloadURL,
		Key:           req.Key,
		ExpireSeconds: int(h.ttl.Seconds()),
	})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// validatePut also pins the key to its parent: post-file/{parentId}/ or profile/{uploaderId}/.
func validatePut(req putRequest) error {
	if err := checkKey(req.FileCategory, req.Key); err != nil {
		return err
	}
	if strings.TrimSpace(req.ContentType) == "" {
		return fmt.Errorf("contentType is required")
	}
	if req.ContentSize <= 0 {
		return fmt.Errorf("contentSize must be positive")
	}
	if _, err := strconv.ParseInt(req.UploaderID, 10, 64); err != nil {
		return fmt.Errorf("uploaderId must be numeric")
	}

	var owner string
	switch req.FileCategory {
	case categoryPostFile:
		if req.ParentID == nil {
			return fmt.Errorf("parentId is required for %s", categoryPostFile)
		}
		owner = strconv.FormatInt(*req.ParentID, 10)
	case categoryProfile:
		if req.ParentID != nil {
			return fmt.Errorf("parentId must be null for %s", categoryProfile)
		}
		owner = req.UploaderID
	}
	if !strings.HasPrefix(req.Key, req.FileCategory+"/"+owner+"/") {
		return fmt.Errorf("key %q does not belong to %s/%s", req.Key, req.FileCategory, owner)
	}
	return nil
}

func checkKey(category, key string) error {
	switch category {
	case categoryPostFile, categoryProfile:
	default:
		return fmt.Errorf("unknown fileCategory %q", category)
	}
	rest, ok := strings.CutPrefix(key, category+"/")
	if !ok || rest == "" || strings.Contains(key, "..") {
		return fmt.Errorf("key %q is outside %s/", key, category)
	}
	return nil
}
