// Package memory holds the in-process caches in front of the
// authoritative store.
package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"collabgraph-backend/application/ports"
)

const (
	// presenceTTL is how long a user↔socket binding survives without
	// activity.
	presenceTTL = time.Hour

	// staleOnlineAge is how long a user may stay flagged online without
	// activity before the sweep flips them offline.
	staleOnlineAge = 5 * time.Minute

	sweepInterval = time.Minute
)

type binding struct {
	value  string
	expiry time.Time
}

// PresenceCache is the bidirectional user↔socket lookup with TTL
// entries refreshed on activity. Entries expire by timestamp and are
// pruned by the periodic sweep. Online lookups that miss the cache fall
// back to the authoritative user store.
type PresenceCache struct {
	mu           sync.Mutex
	userToSocket map[string]binding
	socketToUser map[string]binding

	users  ports.UserRepository
	logger *zap.Logger

	stopSweep chan struct{}
	sweepDone chan struct{}

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewPresenceCache creates a presence cache over the user store.
func NewPresenceCache(users ports.UserRepository, logger *zap.Logger) *PresenceCache {
	return &PresenceCache{
		userToSocket: make(map[string]binding),
		socketToUser: make(map[string]binding),
		users:        users,
		logger:       logger,
		now:          time.Now,
	}
}

// Bind records the user↔socket pair and marks the user online.
func (c *PresenceCache) Bind(ctx context.Context, userID, socketID string) {
	now := c.now()
	c.mu.Lock()
	c.userToSocket[userID] = binding{value: socketID, expiry: now.Add(presenceTTL)}
	c.socketToUser[socketID] = binding{value: userID, expiry: now.Add(presenceTTL)}
	c.mu.Unlock()

	if err := c.users.SetOnline(ctx, userID, true, now); err != nil {
		c.logger.Warn("Failed to mark user online",
			zap.String("userId", userID),
			zap.Error(err))
	}
}

// Touch refreshes the TTL on both directions of a user's binding and
// bumps lastSeen.
func (c *PresenceCache) Touch(ctx context.Context, userID string) {
	now := c.now()
	c.mu.Lock()
	entry, ok := c.userToSocket[userID]
	if ok {
		entry.expiry = now.Add(presenceTTL)
		c.userToSocket[userID] = entry
		if reverse, ok := c.socketToUser[entry.value]; ok {
			reverse.expiry = now.Add(presenceTTL)
			c.socketToUser[entry.value] = reverse
		}
	}
	c.mu.Unlock()

	if ok {
		if err := c.users.SetOnline(ctx, userID, true, now); err != nil {
			c.logger.Warn("Failed to refresh user activity",
				zap.String("userId", userID),
				zap.Error(err))
		}
	}
}

// Unbind drops the user's binding and marks them offline.
func (c *PresenceCache) Unbind(ctx context.Context, userID string) {
	c.mu.Lock()
	if entry, ok := c.userToSocket[userID]; ok {
		delete(c.socketToUser, entry.value)
		delete(c.userToSocket, userID)
	}
	c.mu.Unlock()

	if err := c.users.SetOnline(ctx, userID, false, c.now()); err != nil {
		c.logger.Warn("Failed to mark user offline",
			zap.String("userId", userID),
			zap.Error(err))
	}
}

// SocketForUser returns the user's socket id when the binding is live.
func (c *PresenceCache) SocketForUser(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.userToSocket[userID]
	if !ok || c.now().After(entry.expiry) {
		return "", false
	}
	return entry.value, true
}

// UserForSocket returns the socket's user id when the binding is live.
func (c *PresenceCache) UserForSocket(socketID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.socketToUser[socketID]
	if !ok || c.now().After(entry.expiry) {
		return "", false
	}
	return entry.value, true
}

// IsOnline answers from the cache when possible and falls back to the
// authoritative store on a miss.
func (c *PresenceCache) IsOnline(ctx context.Context, userID string) bool {
	if _, ok := c.SocketForUser(userID); ok {
		return true
	}
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return false
	}
	return user.IsOnline
}

// StartSweep begins pruning expired bindings and flipping stale online
// users offline.
func (c *PresenceCache) StartSweep(ctx context.Context) {
	c.stopSweep = make(chan struct{})
	c.sweepDone = make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		defer close(c.sweepDone)
		for {
			select {
			case <-c.stopSweep:
				return
			case <-ticker.C:
				c.sweep(ctx)
			}
		}
	}()
}

// StopSweep halts the periodic sweep.
func (c *PresenceCache) StopSweep() {
	if c.stopSweep != nil {
		close(c.stopSweep)
		<-c.sweepDone
		c.stopSweep = nil
	}
}

func (c *PresenceCache) sweep(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	for userID, entry := range c.userToSocket {
		if now.After(entry.expiry) {
			delete(c.socketToUser, entry.value)
			delete(c.userToSocket, userID)
		}
	}
	for socketID, entry := range c.socketToUser {
		if now.After(entry.expiry) {
			delete(c.socketToUser, socketID)
		}
	}
	c.mu.Unlock()

	stale, err := c.users.FindStaleOnline(ctx, now.Add(-staleOnlineAge))
	if err != nil {
		c.logger.Warn("Stale-online sweep failed", zap.Error(err))
		return
	}
	for _, user := range stale {
		if err := c.users.SetOnline(ctx, user.ID, false, user.LastSeen); err != nil {
			c.logger.Warn("Failed to flip stale user offline",
				zap.String("userId", user.ID),
				zap.Error(err))
		}
	}
	if len(stale) > 0 {
		c.logger.Debug("Flipped stale users offline", zap.Int("count", len(stale)))
	}
}
