package loader

import (
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/capload/pkg/archive"
)

const (
	// DefaultIndexSize is the number of archives whose entry lists are cached
	DefaultIndexSize = 256
	// DefaultIndexTTL is how long a cached entry list stays valid
	DefaultIndexTTL = 10 * time.Minute
)

// Index caches the entry names of archives across loading contexts. Keys
// include the file size and modification time, so a rewritten archive is
// always rescanned.
type Index struct {
	cache *lru.LRU[string, []string]
}

// NewIndex creates an entry index cache
func NewIndex(size int, ttl time.Duration) *Index {
	if size <= 0 {
		size = DefaultIndexSize
	}
	if ttl <= 0 {
		ttl = DefaultIndexTTL
	}
	return &Index{
		cache: lru.NewLRU[string, []string](size, nil, ttl),
	}
}

// Entries returns the non-directory entry names of the archive at path, in
// archive order
func (i *Index) Entries(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive %s: %w", path, err)
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if names, ok := i.cache.Get(key); ok {
		return names, nil
	}

	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	names := r.Names()
	i.cache.Add(key, names)
	return names, nil
}

// Len returns the number of cached archives
func (i *Index) Len() int {
	return i.cache.Len()
}

// Purge drops every cached entry list
func (i *Index) Purge() {
	i.cache.Purge()
}
