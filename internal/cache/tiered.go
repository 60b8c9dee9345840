package cache

import "time"

// Tiered fronts a disk store with a memory store. Lookups that miss memory
// but hit disk re-promote the page so the next lookup is cheap.
type Tiered struct {
	hot  Store
	cold Store
}

// NewTiered combines a memory store and a disk store under one Store.
func NewTiered(memoryTTL time.Duration, dir string, diskTTL time.Duration) *Tiered {
	return &Tiered{
		hot:  NewMemory(memoryTTL),
		cold: NewDisk(dir, diskTTL),
	}
}

// Lookup checks memory first, then disk, promoting disk hits.
func (t *Tiered) Lookup(url string) (Page, bool) {
	if page, ok := t.hot.Lookup(url); ok {
		return page, true
	}
	page, ok := t.cold.Lookup(url)
	if !ok {
		return Page{}, false
	}
	// ttl 0 defers to the memory store's default.
	_ = t.hot.Save(page, 0)
	return page, true
}

// Save writes the page to both tiers.
func (t *Tiered) Save(page Page, ttl time.Duration) error {
	if err := t.hot.Save(page, ttl); err != nil {
		return err
	}
	return t.cold.Save(page, ttl)
}

// Evict removes the page from both tiers.
func (t *Tiered) Evict(url string) error {
	if err := t.hot.Evict(url); err != nil {
		return err
	}
	return t.cold.Evict(url)
}

// Purge empties both tiers.
func (t *Tiered) Purge() error {
	if err := t.hot.Purge(); err != nil {
		return err
	}
	return t.cold.Purge()
}
