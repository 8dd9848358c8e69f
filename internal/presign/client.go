// Package presign talks to the presigned-URL issuing service and moves object bytes
// to the URLs it issues. It never holds object-store credentials.
package presign

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/metrics"
)

// maxLoggedBody caps how much of a rejected response is logged.
const maxLoggedBody = 512

// PutRequest asks for a presigned PUT ticket. ParentID is nil for profile images.
type PutRequest struct {
	Key         string
	ContentType string
	ContentSize int64
	UploaderID  int64
	ParentID    *int64
	Category    string
}

// PutTicket is the issuing service's answer to a PutRequest.
type PutTicket struct {
	UploadURL     string `json:"uploadUrl"`
	FileURL       string `json:"fileUrl"`
	Key           string `json:"key"`
	ExpireSeconds int    `json:"expireSeconds"`
}

// GetRequest asks for a presigned download URL.
type GetRequest struct {
	Key          string
	Category     string
	DownloadName string
}

// GetTicket is the issuing service's answer to a GetRequest.
type GetTicket struct {
	DownloadURL   string `json:"downloadUrl"`
	Key           string `json:"key"`
	ExpireSeconds int    `json:"expireSeconds"`
}

// putBody is the wire shape of POST /files.
type putBody struct {
	Key          string `json:"key"`
	ContentType  string `json:"contentType"`
	ContentSize  int64  `json:"contentSize"`
	UploaderID   string `json:"uploaderId"`
	ParentID     *int64 `json:"parentId"`
	FileCategory string `json:"fileCategory"`
}

// getBody is the wire shape of POST /files/download.
type getBody struct {
	Key          string `json:"key"`
	FileCategory string `json:"fileCategory"`
	DownloadName string `json:"downloadName"`
}

// Client is the HTTP client of the issuing service.
type Client struct {
	httpClient *resty.Client
	log        zerolog.Logger
}

// NewClient creates a Client for baseURL (e.g. http://presigner:8090).
// timeout bounds every call, including reading the response.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		log: log.With().Str("component", "presign_client").Logger(),
	}
}

// IssuePresignedPut requests a one-time upload URL and the durable file URL for req.Key.
func (c *Client) IssuePresignedPut(ctx context.Context, req PutRequest) (*PutTicket, error) {
	start := time.Now()
	ticket, err := c.issuePut(ctx, req)
	metrics.RecordExternalCall("presign_put", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (c *Client) issuePut(ctx context.Context, req PutRequest) (*PutTicket, error) {
	body := putBody{
		Key:          req.Key,
		ContentType:  req.ContentType,
		ContentSize:  req.ContentSize,
		UploaderID:   strconv.FormatInt(req.UploaderID, 10),
		ParentID:     req.ParentID,
		FileCategory: req.Category,
	}

	var ticket PutTicket
	if err := c.post(ctx, "/files", body, &ticket); err != nil {
		return nil, err
	}

	if err := validateUploadURL(ticket.UploadURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ticket.FileURL) == "" {
		return nil, errors.New("issuing service response has no fileUrl")
	}
	if ticket.Key != "" && ticket.Key != req.Key {
		return nil, fmt.Errorf("issuing service answered for key %q, requested %q", ticket.Key, req.Key)
	}
	return &ticket, nil
}

// IssuePresignedGet requests a time-limited download URL for req.Key.
func (c *Client) IssuePresignedGet(ctx context.Context, req GetRequest) (*GetTicket, error) {
	start := time.Now()
	ticket, err := c.issueGet(ctx, req)
	metrics.RecordExternalCall("presign_get", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (c *Client) issueGet(ctx context.Context, req GetRequest) (*GetTicket, error) {
	body := getBody{Key: req.Key, FileCategory: req.Category, DownloadName: req.DownloadName}

	var ticket GetTicket
	if err := c.post(ctx, "/files/download", body, &ticket); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ticket.DownloadURL) == "" {
		return nil, errors.New("issuing service response has no downloadUrl")
	}
	return &ticket, nil
}

// post sends a JSON body to path and decodes a 2xx JSON answer into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(out).
		ForceContentType("application/json").
		Post(path)
	if err != nil {
		return fmt.Errorf("call issuing service %s: %w", path, err)
	}

	if !resp.IsSuccess() {
		body := resp.String()
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}
		c.log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode()).
			Str("body", body).
			Msg("issuing service rejected request")
		return fmt.Errorf("issuing service %s returned status %d", path, resp.StatusCode())
	}
	return nil
}

// validateUploadURL requires an absolute http(s) URL.
func validateUploadURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("issuing service response has no uploadUrl")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed uploadUrl: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("uploadUrl %q is not an absolute http(s) URL", raw)
	}
	return nil
}
