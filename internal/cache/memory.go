package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local page store on go-cache. Contents are lost on
// restart, so it suits short TTLs.
type Memory struct {
	pages *gocache.Cache
}

// NewMemory creates a memory store with the given default TTL. Expired
// pages are swept at half the TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	sweep := defaultTTL / 2
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Memory{pages: gocache.New(defaultTTL, sweep)}
}

// Lookup returns the cached page for a URL, if present and unexpired.
func (m *Memory) Lookup(url string) (Page, bool) {
	v, ok := m.pages.Get(entryKey(url))
	if !ok {
		return Page{}, false
	}
	return v.(Page), true
}

// Save stores a page under its own URL.
func (m *Memory) Save(page Page, ttl time.Duration) error {
	m.pages.Set(entryKey(page.URL), page, ttl)
	return nil
}

// Evict drops the page for a URL.
func (m *Memory) Evict(url string) error {
	m.pages.Delete(entryKey(url))
	return nil
}

// Purge drops every page.
func (m *Memory) Purge() error {
	m.pages.Flush()
	return nil
}
