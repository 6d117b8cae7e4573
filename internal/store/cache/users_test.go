package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/storycast/internal/store"
)

func TestGetUserReadThrough(t *testing.T) {
	backend := newMockBackend(store.UserProfile{Identity: "kid", YearOfBirth: 2019})
	c := NewUserStore(backend, 10, time.Minute, nil)
	ctx := context.Background()

	for range 3 {
		u, err := c.GetUser(ctx, "kid")
		require.NoError(t, err)
		assert.Equal(t, 2019, u.YearOfBirth)
	}
	assert.Equal(t, 1, backend.gets)
}

func TestGetUserMissingIsNotCached(t *testing.T) {
	backend := newMockBackend()
	c := NewUserStore(backend, 10, time.Minute, nil)

	_, err := c.GetUser(context.Background(), "ghost")
	assert.True(t, errors.Is(err, store.ErrUserNotFound))
	_, _ = c.GetUser(context.Background(), "ghost")
	assert.Equal(t, 2, backend.gets)
}

func TestReturnedProfileIsACopy(t *testing.T) {
	c := NewUserStore(newMockBackend(store.UserProfile{Identity: "kid", PreferredVoice: "fairy"}), 10, time.Minute, nil)
	u, err := c.GetUser(context.Background(), "kid")
	require.NoError(t, err)
	u.PreferredVoice = "changed"

	again, err := c.GetUser(context.Background(), "kid")
	require.NoError(t, err)
	assert.Equal(t, "fairy", again.PreferredVoice)
}

func TestIncrementInvalidates(t *testing.T) {
	backend := newMockBackend(store.UserProfile{Identity: "kid"})
	remote := newMockRemote()
	c := NewUserStore(backend, 10, time.Minute, remote)
	ctx := context.Background()

	_, err := c.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Contains(t, remote.data, keyPrefix+"kid")

	require.NoError(t, c.IncrementStoryCount(ctx, "kid"))
	assert.NotContains(t, remote.data, keyPrefix+"kid")

	u, err := c.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 1, u.StoryCount)
	assert.Equal(t, 2, backend.gets)
}

func TestRemoteTierServesOtherInstances(t *testing.T) {
	backend := newMockBackend(store.UserProfile{Identity: "kid", YearOfBirth: 2020, PasswordHash: "secret"})
	remote := newMockRemote()
	ctx := context.Background()

	_, err := NewUserStore(backend, 10, time.Minute, remote).GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.NotContains(t, string(remote.data[keyPrefix+"kid"]), "secret")

	other := NewUserStore(backend, 10, time.Minute, remote)
	u, err := other.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 2020, u.YearOfBirth)
	assert.Equal(t, 1, backend.gets, "second instance served from the shared tier")
}

func TestLocalTTLShortenedWithRemote(t *testing.T) {
	backend := newMockBackend()
	assert.Equal(t, time.Minute, NewUserStore(backend, 10, time.Minute, nil).localTTL)
	assert.Equal(t, MaxLocalTTLWithRemote, NewUserStore(backend, 10, time.Minute, newMockRemote()).localTTL)
	assert.Equal(t, 5*time.Second, NewUserStore(backend, 10, 5*time.Second, newMockRemote()).localTTL)
}

func TestPeerSeesIncrementAfterLocalExpiry(t *testing.T) {
	backend := newMockBackend(store.UserProfile{Identity: "kid"})
	remote := newMockRemote()
	ctx := context.Background()
	a := NewUserStore(backend, 10, 40*time.Millisecond, remote)
	b := NewUserStore(backend, 10, 40*time.Millisecond, remote)

	_, err := b.GetUser(ctx, "kid")
	require.NoError(t, err)
	require.NoError(t, a.IncrementStoryCount(ctx, "kid"))

	assert.Eventually(t, func() bool {
		u, err := b.GetUser(ctx, "kid")
		return err == nil && u.StoryCount == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUpsertInvalidates(t *testing.T) {
	backend := newMockBackend(store.UserProfile{Identity: "kid", PreferredVoice: "fairy"})
	c := NewUserStore(backend, 10, time.Minute, nil)
	ctx := context.Background()

	_, _ = c.GetUser(ctx, "kid")
	require.NoError(t, c.UpsertUser(ctx, &store.UserProfile{Identity: "kid", PreferredVoice: "grandpa"}))
	u, err := c.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, "grandpa", u.PreferredVoice)
}
