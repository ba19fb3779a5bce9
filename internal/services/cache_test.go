package services

import (
	"testing"
	"time"
)

func TestCacheService_SetGet(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	defer cs.Stop()

	key := CacheKey([]byte(`{"treeId":"VE-229"}`))
	if _, ok := cs.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	cs.Set(key, []byte("%PDF-1.7"))
	data, ok := cs.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != "%PDF-1.7" {
		t.Errorf("cached data = %q", data)
	}
}

func TestCacheService_Expiry(t *testing.T) {
	cs := NewCacheService(time.Millisecond, time.Hour)
	defer cs.Stop()

	cs.Set("k", []byte("v"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := cs.Get("k"); ok {
		t.Error("expired entry returned")
	}

	cs.removeExpired(time.Now())
	if cs.Len() != 0 {
		t.Errorf("Len() = %d after cleanup, want 0", cs.Len())
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey([]byte("same"))
	b := CacheKey([]byte("same"))
	c := CacheKey([]byte("other"))
	if a != b {
		t.Error("same body produced different keys")
	}
	if a == c {
		t.Error("different bodies produced the same key")
	}

	cs := NewCacheService(time.Minute, time.Minute)
	cs.Stop()
	cs.Stop()
}

func TestCacheService_CopiesDocuments(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	defer cs.Stop()

	doc := []byte("%PDF-1.7")
	cs.Set("k", doc)
	doc[0] = 'X'

	first, _ := cs.Get("k")
	first[1] = 'Y'

	second, ok := cs.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(second) != "%PDF-1.7" {
		t.Errorf("cached document changed through a caller's slice: %q", second)
	}
}
