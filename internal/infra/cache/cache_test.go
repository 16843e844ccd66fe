package cache_test

import (
	"testing"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](time.Minute)

	c.Set("key1", "value1", 5*time.Minute)
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](time.Minute)

	c.Set("key1", "value1", 50*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_OverwriteExtendsTTL(t *testing.T) {
	c := cache.New[string](time.Minute)

	c.Set("key1", "old", 50*time.Millisecond)
	c.Set("key1", "new", 5*time.Minute)
	time.Sleep(100 * time.Millisecond)

	val, ok := c.Get("key1")
	if !ok || val != "new" {
		t.Fatalf("expected overwritten entry to survive, got %q, %v", val, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	c := cache.New[string](time.Minute)

	c.Set("key1", "value1", 5*time.Minute)
	c.Set("key2", "value2", 5*time.Minute)
	c.Clear()

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache to be empty after Clear")
	}
	if _, ok := c.Get("key2"); ok {
		t.Fatal("expected cache to be empty after Clear")
	}
}
