package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabgraph-backend/domain/entities"
	apperrors "collabgraph-backend/pkg/errors"
)

type stubUserRepo struct {
	users map[string]*entities.User
}

func newStubUserRepo(ids ...string) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]*entities.User)}
	for _, id := range ids {
		repo.users[id] = &entities.User{ID: id, Username: "user-" + id}
	}
	return repo
}

func (r *stubUserRepo) Create(ctx context.Context, user *entities.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user")
	}
	return user, nil
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return nil, apperrors.NewNotFoundError("user")
}

func (r *stubUserRepo) List(ctx context.Context) ([]*entities.User, error) { return nil, nil }

func (r *stubUserRepo) Update(ctx context.Context, user *entities.User) error { return nil }

func (r *stubUserRepo) Delete(ctx context.Context, id string) error { return nil }

func (r *stubUserRepo) SetOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	if user, ok := r.users[id]; ok {
		user.IsOnline = online
		user.LastSeen = lastSeen
	}
	return nil
}

func (r *stubUserRepo) FindStaleOnline(ctx context.Context, before time.Time) ([]*entities.User, error) {
	var stale []*entities.User
	for _, user := range r.users {
		if user.IsOnline && user.LastSeen.Before(before) {
			stale = append(stale, user)
		}
	}
	return stale, nil
}

func newTestCache(ids ...string) (*PresenceCache, *stubUserRepo, *time.Time) {
	repo := newStubUserRepo(ids...)
	cache := NewPresenceCache(repo, zap.NewNop())
	now := time.Now()
	cache.now = func() time.Time { return now }
	return cache, repo, &now
}

func TestBindRecordsBothDirectionsAndMarksOnline(t *testing.T) {
	cache, repo, _ := newTestCache("u1")
	ctx := context.Background()

	cache.Bind(ctx, "u1", "sock-1")

	socket, ok := cache.SocketForUser("u1")
	require.True(t, ok)
	assert.Equal(t, "sock-1", socket)

	user, ok := cache.UserForSocket("sock-1")
	require.True(t, ok)
	assert.Equal(t, "u1", user)

	assert.True(t, repo.users["u1"].IsOnline)
}

func TestBindingsExpireAfterTTL(t *testing.T) {
	cache, _, now := newTestCache("u1")
	cache.Bind(context.Background(), "u1", "sock-1")

	*now = now.Add(presenceTTL + time.Second)

	_, ok := cache.SocketForUser("u1")
	assert.False(t, ok)
	_, ok = cache.UserForSocket("sock-1")
	assert.False(t, ok)
}

func TestTouchRefreshesExpiry(t *testing.T) {
	cache, _, now := newTestCache("u1")
	ctx := context.Background()
	cache.Bind(ctx, "u1", "sock-1")

	*now = now.Add(presenceTTL - time.Minute)
	cache.Touch(ctx, "u1")
	*now = now.Add(presenceTTL - time.Minute)

	_, ok := cache.SocketForUser("u1")
	assert.True(t, ok)
	_, ok = cache.UserForSocket("sock-1")
	assert.True(t, ok)
}

func TestUnbindMarksOffline(t *testing.T) {
	cache, repo, _ := newTestCache("u1")
	ctx := context.Background()
	cache.Bind(ctx, "u1", "sock-1")

	cache.Unbind(ctx, "u1")

	_, ok := cache.SocketForUser("u1")
	assert.False(t, ok)
	_, ok = cache.UserForSocket("sock-1")
	assert.False(t, ok)
	assert.False(t, repo.users["u1"].IsOnline)
}

func TestIsOnlineFallsBackToStore(t *testing.T) {
	cache, repo, _ := newTestCache("u1", "u2")
	ctx := context.Background()

	// No binding, but the store says online.
	repo.users["u1"].IsOnline = true
	assert.True(t, cache.IsOnline(ctx, "u1"))

	assert.False(t, cache.IsOnline(ctx, "u2"))
	assert.False(t, cache.IsOnline(ctx, "ghost"))
}

func TestSweepPrunesExpiredAndFlipsStaleOnline(t *testing.T) {
	cache, repo, now := newTestCache("u1", "u2")
	ctx := context.Background()

	cache.Bind(ctx, "u1", "sock-1")
	repo.users["u2"].IsOnline = true
	repo.users["u2"].LastSeen = now.Add(-time.Hour)

	*now = now.Add(presenceTTL + time.Second)
	cache.sweep(ctx)

	_, ok := cache.SocketForUser("u1")
	assert.False(t, ok)
	assert.False(t, repo.users["u2"].IsOnline)
}
