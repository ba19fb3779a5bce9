package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"treecert/internal/models"
)

// CacheService keeps generated documents for a short time so that identical
// payloads are not rendered twice.
type CacheService struct {
	cache           map[string]*models.CacheEntry
	mu              sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

func NewCacheService(ttl, cleanupInterval time.Duration) *CacheService {
	cs := &CacheService{
		cache:           make(map[string]*models.CacheEntry),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}

	// Start cleanup goroutine
	go cs.cleanupExpired()

	return cs
}

// CacheKey derives the cache key for a request body.
func CacheKey(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Retrieves a copy of a cached document by key, returning false if not found or expired.
func (cs *CacheService) Get(key string) ([]byte, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, ok := cs.cache[key]
	if !ok {
		return nil, false
	}

	if entry.Expires.Before(time.Now()) {
		return nil, false
	}

	return bytes.Clone(entry.Data), true
}

// Stores a copy of a document under key. The entry expires after the configured TTL.
func (cs *CacheService) Set(key string, data []byte) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &models.CacheEntry{
		Data:    bytes.Clone(data),
		Expires: time.Now().Add(cs.ttl),
	}
}

// Len returns the number of entries, expired or not, still held.
func (cs *CacheService) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.cache)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (cs *CacheService) Stop() {
	cs.stopOnce.Do(func() { close(cs.stop) })
}

// Periodically removes expired entries from the cache.
// This runs in a background goroutine started by NewCacheService.
func (cs *CacheService) cleanupExpired() {
	ticker := time.NewTicker(cs.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.stop:
			return
		case <-ticker.C:
			cs.removeExpired(time.Now())
		}
	}
}

func (cs *CacheService) removeExpired(now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range cs.cache {
		if v.Expires.Before(now) {
			delete(cs.cache, k)
		}
	}
}
