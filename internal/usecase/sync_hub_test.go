package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/internal/infrastructure/memstore"
)

func TestHubSharesSessionAcrossAcquires(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedItem(t, store, "i1", testItem("other", 100))

	hub := NewSyncHub(store)

	s1, err := hub.Acquire(ctx, "me")
	require.NoError(t, err)
	s2, err := hub.Acquire(ctx, "me")
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	require.NotEmpty(t, s1.Catalog.Feed())

	// The first release keeps the session alive.
	s1.Release()
	assert.NotEmpty(t, s2.Catalog.Feed())

	s2.Release()
	assert.Empty(t, s2.Catalog.Feed())

	// A fresh acquire builds a new session.
	s3, err := hub.Acquire(ctx, "me")
	require.NoError(t, err)
	defer s3.Release()
	assert.NotSame(t, s1, s3)
}

func TestHubSwipeRoutesThroughLiveSession(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedItem(t, store, "i1", testItem("other", 100))

	hub := NewSyncHub(store)
	session, err := hub.Acquire(ctx, "me")
	require.NoError(t, err)
	defer session.Release()

	require.NoError(t, hub.Swipe(ctx, "me", "i1", entity.SwipeLike))
	assert.Empty(t, session.Catalog.Feed())

	var action string
	found, err := store.Get(ctx, repository.UserSwipePath("me", "i1"), &action)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entity.SwipeLike, action)
}

func TestHubSwipeWithoutSessionWritesDirectly(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	hub := NewSyncHub(store)

	require.NoError(t, hub.Swipe(ctx, "me", "i1", entity.SwipeDislike))

	var action string
	found, err := store.Get(ctx, repository.UserSwipePath("me", "i1"), &action)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entity.SwipeDislike, action)

	assert.Error(t, hub.Swipe(ctx, "me", "i1", "maybe"))
}
