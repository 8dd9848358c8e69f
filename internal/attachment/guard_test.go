package attachment

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commboard/service/internal/post"
)

func TestGuard_DeletedPostAfterLookup(t *testing.T) {
	owners := postOwners{postID: authorID}
	guard := NewGuard(post.NewCachedOwners(owners, 16, 0))
	ctx := context.Background()

	require.NoError(t, guard.Check(ctx, PostTarget(postID), authorID))

	delete(owners, postID)
	assert.ErrorIs(t, guard.Check(ctx, PostTarget(postID), authorID), ErrNotFound)
	_, err := guard.Owner(ctx, PostTarget(postID))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpload_DeletedPostCommitsNothing(t *testing.T) {
	owners := postOwners{postID: authorID}
	store := newMemStore()
	issuer := &fakeIssuer{}
	transport := &fakeTransport{}
	guard := NewGuard(post.NewCachedOwners(owners, 16, 0))
	orch := NewOrchestrator(guard, NewKeyGenerator(), issuer, transport, defaultLimits(), zerolog.Nop())
	svc := NewService(store, orch, guard, issuer, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.UploadToPost(ctx, postID, authorID, []Upload{{Name: "a.txt", ContentType: "text/plain", Data: []byte("a")}})
	require.NoError(t, err)
	require.NoError(t, first.Err())
	writes := store.writeCount()

	delete(owners, postID)

	_, err = svc.UploadToPost(ctx, postID, authorID, []Upload{{Name: "b.txt", ContentType: "text/plain", Data: []byte("b")}})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ListByPost(ctx, postID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, first.Files[0].ID, authorID), ErrNotFound)

	assert.Equal(t, writes, store.writeCount())
	assert.Equal(t, 1, issuer.putCount())
}
