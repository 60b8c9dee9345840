// Package cache keeps fetched web pages so repeated analyze-url requests
// for the same article do not hit the origin again. Stores are keyed by
// URL; hashing and namespacing happen inside the package.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Page is one cached fetch result.
type Page struct {
	URL       string    `json:"url"`
	Body      []byte    `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Store holds fetched pages for a bounded time. A ttl of 0 on Save means
// the store's default.
type Store interface {
	Lookup(url string) (Page, bool)
	Save(page Page, ttl time.Duration) error
	Evict(url string) error
	Purge() error
}

// entryKey hashes a URL into a stable, filesystem-safe key. The prefix
// versions the layout so a format change never reads stale entries.
func entryKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "veristream-v1-" + hex.EncodeToString(sum[:])
}
