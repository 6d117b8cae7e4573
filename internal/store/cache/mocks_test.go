package cache

import (
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/storycast/internal/store"
)

// --- Mocks ---

type mockBackend struct {
	mu    sync.Mutex
	users map[string]store.UserProfile
	gets  int
}

func newMockBackend(users ...store.UserProfile) *mockBackend {
	b := &mockBackend{users: map[string]store.UserProfile{}}
	for _, u := range users {
		b.users[u.Identity] = u
	}
	return b
}

func (b *mockBackend) GetUser(_ context.Context, identity string) (*store.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	u, ok := b.users[identity]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (b *mockBackend) UpsertUser(_ context.Context, u *store.UserProfile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[u.Identity] = *u
	return nil
}

func (b *mockBackend) IncrementStoryCount(_ context.Context, identity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[identity]
	if !ok {
		return store.ErrUserNotFound
	}
	u.StoryCount++
	b.users[identity] = u
	return nil
}

func (b *mockBackend) Close() error { return nil }

type mockRemote struct {
	mu   sync.Mutex
	data map[string][]byte
	dels int
}

func newMockRemote() *mockRemote { return &mockRemote{data: map[string][]byte{}} }

func (r *mockRemote) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (r *mockRemote) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = value
	return nil
}

func (r *mockRemote) Del(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dels++
	delete(r.data, key)
	return nil
}
