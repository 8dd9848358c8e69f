package attachment

import (
	"context"
	"fmt"
)

// Replace swaps the content of fileID for file. The new bytes are transferred first;
// only then is the new record committed and the old one tombstoned, in one transaction.
// On any failure before that the old file stays live.
func (s *Service) Replace(ctx context.Context, fileID, callerID int64, file Upload) (*FileRecord, error) {
	old, err := s.replaceable(ctx, fileID, callerID)
	if err != nil {
		return nil, err
	}
	target := old.Target()

	swap := func(ctx context.Context, rec *FileRecord) (*FileRecord, error) {
		return s.store.Swap(ctx, old.ID, rec)
	}
	rec, err := s.orch.uploadOne(ctx, target, callerID, file, swap)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("old_file_id", old.ID).
		Int64("new_file_id", rec.ID).
		Str("superseded_key", old.StorageKey).
		Msg("file replaced")
	return rec, nil
}

// AuthorizeReplace reports whether callerID may replace fileID.
func (s *Service) AuthorizeReplace(ctx context.Context, fileID, callerID int64) error {
	_, err := s.replaceable(ctx, fileID, callerID)
	return err
}

func (s *Service) replaceable(ctx context.Context, fileID, callerID int64) (*FileRecord, error) {
	old, err := s.store.GetLive(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, old.Target(), callerID); err != nil {
		return nil, err
	}
	if old.Category != CategoryPostFile {
		return nil, fmt.Errorf("%w: profile images are replaced through the profile endpoint", ErrInvalidInput)
	}
	return old, nil
}
