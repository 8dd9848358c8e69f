package presign

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/metrics"
)

// Transport PUTs object bytes to presigned upload URLs.
type Transport struct {
	httpClient *resty.Client
	log        zerolog.Logger
}

// NewTransport creates a Transport whose transfers are bounded by timeout.
func NewTransport(timeout time.Duration, log zerolog.Logger) *Transport {
	return &Transport{
		httpClient: resty.New().SetTimeout(timeout),
		log:        log.With().Str("component", "object_transport").Logger(),
	}
}

// TransferBytes uploads body to uploadURL with the given Content-Type.
// Any non-2xx answer is a failure. There is no retry.
func (t *Transport) TransferBytes(ctx context.Context, uploadURL, contentType string, body []byte) error {
	start := time.Now()
	err := t.transfer(ctx, uploadURL, contentType, body)
	metrics.RecordExternalCall("transfer", err, time.Since(start))
	return err
}

func (t *Transport) transfer(ctx context.Context, uploadURL, contentType string, body []byte) error {
	req := t.httpClient.R().
		SetContext(ctx).
		SetBody(body)
	if contentType != "" {
		req.SetHeader("Content-Type", contentType)
	}

	resp, err := req.Put(uploadURL)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	if !resp.IsSuccess() {
		t.log.Warn().Int("status", resp.StatusCode()).Int("bytes", len(body)).Msg("object store rejected upload")
		return fmt.Errorf("object store returned status %d", resp.StatusCode())
	}
	return nil
}
