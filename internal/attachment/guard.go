package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/commboard/service/internal/post"
)

// Authorize is the single ownership predicate: only the owner may act.
func Authorize(ownerID, callerID int64) error {
	if ownerID != callerID {
		return ErrUnauthorized
	}
	return nil
}

// PostOwners resolves post authors.
type PostOwners interface {
	OwnerID(ctx context.Context, postID int64) (int64, error)
}

// Guard resolves the owner of a target and applies Authorize.
type Guard struct {
	posts PostOwners
}

// NewGuard creates a Guard.
func NewGuard(posts PostOwners) *Guard {
	return &Guard{posts: posts}
}

// Owner returns the owner of target. Missing or deleted posts yield ErrNotFound.
func (g *Guard) Owner(ctx context.Context, target Target) (int64, error) {
	switch target.Category {
	case CategoryPostFile:
		owner, err := g.posts.OwnerID(ctx, target.ID)
		if errors.Is(err, post.ErrNotFound) {
			return 0, fmt.Errorf("post %d: %w", target.ID, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("resolve post owner: %w", err)
		}
		return owner, nil
	case CategoryProfile:
		return target.ID, nil
	default:
		return 0, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, target.Category)
	}
}

// Check authorizes callerID against target.
func (g *Guard) Check(ctx context.Context, target Target, callerID int64) error {
	owner, err := g.Owner(ctx, target)
	if err != nil {
		return err
	}
	return Authorize(owner, callerID)
}
