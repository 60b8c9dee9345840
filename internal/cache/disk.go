package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Disk persists pages as JSON files so the cache survives restarts.
type Disk struct {
	dir string
	ttl time.Duration
}

// NewDisk creates a disk store rooted at dir. The directory is created on
// first Save.
func NewDisk(dir string, ttl time.Duration) *Disk {
	return &Disk{dir: dir, ttl: ttl}
}

// record is the on-disk envelope around a Page.
type record struct {
	Page      Page      `json:"page"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Lookup reads the page for a URL. Expired or unreadable entries are
// removed rather than surfaced.
func (d *Disk) Lookup(url string) (Page, bool) {
	path := d.path(url)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Page{}, false
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		_ = os.Remove(path)
		return Page{}, false
	}
	if time.Now().After(rec.ExpiresAt) {
		_ = os.Remove(path)
		return Page{}, false
	}
	return rec.Page, true
}

// Save writes a page, replacing any previous entry for the same URL.
func (d *Disk) Save(page Page, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = d.ttl
	}
	raw, err := json.Marshal(record{Page: page, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Write-then-rename keeps concurrent readers from seeing partial entries.
	path := d.path(page.URL)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish page: %w", err)
	}
	return nil
}

// Evict removes the entry for a URL. A missing entry is not an error.
func (d *Disk) Evict(url string) error {
	err := os.Remove(d.path(url))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Purge removes the whole cache directory.
func (d *Disk) Purge() error {
	return os.RemoveAll(d.dir)
}

func (d *Disk) path(url string) string {
	return filepath.Join(d.dir, entryKey(url)+".json")
}
