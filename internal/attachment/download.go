package attachment

import (
	"context"
	"fmt"

	"github.com/commboard/service/internal/presign"
)

// GetIssuer obtains presigned download URLs.
type GetIssuer interface {
	IssuePresignedGet(ctx context.Context, req presign.GetRequest) (*presign.GetTicket, error)
}

// DownloadURL issues a fresh download link for a live file. It mutates nothing,
// so repeated calls are safe; each may return a different URL but the same display name.
func (s *Service) DownloadURL(ctx context.Context, fileID int64) (*DownloadLink, error) {
	rec, err := s.store.GetLive(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.issuer.IssuePresignedGet(ctx, presign.GetRequest{
		Key:          rec.StorageKey,
		Category:     string(rec.Category),
		DownloadName: rec.OriginalName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	return &DownloadLink{DownloadURL: ticket.DownloadURL, DisplayName: rec.OriginalName}, nil
}
