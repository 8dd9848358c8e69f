package profile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/attachment"
)

// Store persists the profile-image slot.
type Store interface {
	Assign(ctx context.Context, userID int64, rec *attachment.FileRecord) (*Assignment, error)
	Clear(ctx context.Context, userID int64) (string, error)
}

// Service contains the profile-image slot operations.
type Service struct {
	store Store
	orch  *attachment.Orchestrator
	log   zerolog.Logger
}

// NewService creates a new profile Service.
func NewService(store Store, orch *attachment.Orchestrator, log zerolog.Logger) *Service {
	return &Service{store: store, orch: orch, log: log.With().Str("component", "profile").Logger()}
}

// SetImage uploads file as callerID's profile image, replacing any current one.
// The replaced image's bytes are left for the reclaimer.
func (s *Service) SetImage(ctx context.Context, callerID int64, file attachment.Upload) (*attachment.FileRecord, error) {
	commit := func(ctx context.Context, rec *attachment.FileRecord) (*attachment.FileRecord, error) {
		a, err := s.store.Assign(ctx, callerID, rec)
		if err != nil {
			return nil, err
		}
		if a.SupersededKey != "" {
			s.log.Info().
				Int64("user_id", callerID).
				Str("superseded_key", a.SupersededKey).
				Msg("profile image superseded")
		}
		return a.File, nil
	}
	return s.orch.UploadOne(ctx, attachment.ProfileTarget(callerID), callerID, file, commit)
}

// RemoveImage empties callerID's slot. An empty slot is not an error.
func (s *Service) RemoveImage(ctx context.Context, callerID int64) error {
	previous, err := s.store.Clear(ctx, callerID)
	if err != nil {
		return err
	}
	if previous != "" {
		s.log.Info().Int64("user_id", callerID).Str("removed_key", previous).Msg("profile image removed")
	}
	return nil
}
