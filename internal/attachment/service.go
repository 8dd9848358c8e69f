package attachment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Store persists file metadata.
type Store interface {
	Create(ctx context.Context, rec *FileRecord) (*FileRecord, error)
	GetLive(ctx context.Context, id int64) (*FileRecord, error)
	ListByPost(ctx context.Context, postID int64) ([]FileRecord, error)
	SoftDelete(ctx context.Context, id int64) error
	Swap(ctx context.Context, oldID int64, rec *FileRecord) (*FileRecord, error)
}

// Service exposes the post attachment operations.
type Service struct {
	store  Store
	orch   *Orchestrator
	guard  *Guard
	issuer GetIssuer
	log    zerolog.Logger
}

// NewService creates a new attachment Service.
func NewService(store Store, orch *Orchestrator, guard *Guard, issuer GetIssuer, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		orch:   orch,
		guard:  guard,
		issuer: issuer,
		log:    log.With().Str("component", "attachment").Logger(),
	}
}

// AuthorizeUpload reports whether callerID may attach files to postID.
func (s *Service) AuthorizeUpload(ctx context.Context, postID, callerID int64) error {
	return s.guard.Check(ctx, PostTarget(postID), callerID)
}

// UploadToPost attaches files to postID on behalf of callerID.
func (s *Service) UploadToPost(ctx context.Context, postID, callerID int64, files []Upload) (*UploadResult, error) {
	return s.orch.Upload(ctx, PostTarget(postID), callerID, files, s.store.Create)
}

// ListByPost returns the live files of a post, newest first.
func (s *Service) ListByPost(ctx context.Context, postID int64) ([]FileRecord, error) {
	if _, err := s.guard.Owner(ctx, PostTarget(postID)); err != nil {
		return nil, err
	}
	files, err := s.store.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list post files: %w", err)
	}
	return files, nil
}

// Delete tombstones a file. The object bytes stay until the reclaimer removes them.
func (s *Service) Delete(ctx context.Context, fileID, callerID int64) error {
	rec, err := s.store.GetLive(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.guard.Check(ctx, rec.Target(), callerID); err != nil {
		return err
	}
	if rec.Category != CategoryPostFile {
		return fmt.Errorf("%w: profile images are removed through the profile endpoint", ErrInvalidInput)
	}
	if err := s.store.SoftDelete(ctx, fileID); err != nil {
		return err
	}
	s.log.Info().Int64("file_id", fileID).Str("key", rec.StorageKey).Msg("file tombstoned")
	return nil
}
