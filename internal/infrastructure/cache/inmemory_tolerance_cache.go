package cache

import (
	"context"
	"sync"
	"time"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/google/uuid"
)

// toleranceEntry is a cached effective tolerance with expiration
type toleranceEntry struct {
	tolerance billing.EffectiveTolerance
	expiresAt time.Time
}

// InMemoryToleranceCache caches resolved tolerances in a process-local map.
// Suitable for single-instance deployments and testing; entries expire after
// the configured TTL and are swept by a background goroutine.
type InMemoryToleranceCache struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]toleranceEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryToleranceCache creates a new in-memory tolerance cache
func NewInMemoryToleranceCache(ttl time.Duration) *InMemoryToleranceCache {
	c := &InMemoryToleranceCache{
		entries:  make(map[uuid.UUID]toleranceEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns the cached tolerance for a company, if present and not expired
func (c *InMemoryToleranceCache) Get(ctx context.Context, companyID uuid.UUID) (*billing.EffectiveTolerance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[companyID]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, false
	}
	tolerance := e.tolerance
	return &tolerance, true
}

// Set stores the resolved tolerance for a company
func (c *InMemoryToleranceCache) Set(ctx context.Context, companyID uuid.UUID, tolerance *billing.EffectiveTolerance) {
	if tolerance == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[companyID] = toleranceEntry{
		tolerance: *tolerance,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate drops the cached tolerance for a company
func (c *InMemoryToleranceCache) Invalidate(ctx context.Context, companyID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, companyID)
}

// Close stops the cleanup goroutine
func (c *InMemoryToleranceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
}

func (c *InMemoryToleranceCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *InMemoryToleranceCache) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}
