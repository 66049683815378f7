package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AccountStatusSource loads the current isActive flag of a subject.
type AccountStatusSource interface {
	IsActive(ctx context.Context, subjectID string) (bool, error)
}

// validityEntry caches one subject's status until ExpiresAt.
type validityEntry struct {
	Active    bool
	ExpiresAt time.Time
}

// ValidityCache is a short-lived, subject-keyed cache of account status
// consulted by the access guard after a credential verifies. It narrows the
// window in which a deactivated account keeps working from the credential
// lifetime down to the cache TTL. Invalidate drops an entry immediately.
type ValidityCache struct {
	mu      sync.RWMutex
	entries map[string]validityEntry
	source  AccountStatusSource
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
}

// NewValidityCache creates a cache and starts a background goroutine that
// evicts stale entries once per TTL.
func NewValidityCache(source AccountStatusSource, ttl time.Duration) *ValidityCache {
	c := &ValidityCache{
		entries: make(map[string]validityEntry),
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Active implements StatusChecker.
func (c *ValidityCache) Active(ctx context.Context, subjectID string) (bool, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[subjectID]
	c.mu.RUnlock()
	if ok && now.Before(entry.ExpiresAt) {
		return entry.Active, nil
	}

	active, err := c.source.IsActive(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("load account status: %w", err)
	}

	c.mu.Lock()
	c.entries[subjectID] = validityEntry{Active: active, ExpiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return active, nil
}

// Invalidate forgets the cached status so the next request reloads it.
func (c *ValidityCache) Invalidate(subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, subjectID)
}

// Len returns the number of cached subjects.
func (c *ValidityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *ValidityCache) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *ValidityCache) cleanupLoop() {
	interval := c.ttl
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *ValidityCache) cleanup() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for subject, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, subject)
		}
	}
}
