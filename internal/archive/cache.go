package archive

import "sync"

// Cache memoizes Summary extraction by hash, and tracks modpacks whose
// inner downloads were not yet present in the content library so their
// cached Summary can be invalidated once that child shows up.
//
// Grounded on original_source/crates/backend/src/mod_metadata.rs's
// ModMetadataManager: an RwLock-guarded hash map plus a
// parents_by_missing_child map used to invalidate a parent modpack's cached
// summary when one of its declared children is later inserted.
type Cache struct {
	mu                    sync.RWMutex
	byHash                map[[20]byte]*Summary
	parentsByMissingChild map[[20]byte][][20]byte
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		byHash:                make(map[[20]byte]*Summary),
		parentsByMissingChild: make(map[[20]byte][][20]byte),
	}
}

// Get returns the cached Summary for hash, if any.
func (c *Cache) Get(hash [20]byte) (*Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byHash[hash]
	return s, ok
}

// Put stores summary (which may be nil, recording "known not to have a
// summary") under hash.
func (c *Cache) Put(hash [20]byte, summary *Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHash[hash] = summary
}

// MarkChildMissing records that parent's cached summary referenced
// childHash but the child's archive wasn't found in the library yet, so
// parent's cache entry should be dropped once childHash becomes available.
func (c *Cache) MarkChildMissing(childHash, parentHash [20]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parentsByMissingChild[childHash] = append(c.parentsByMissingChild[childHash], parentHash)
}

// NotifyChildAvailable invalidates the cached summary of every parent
// waiting on childHash, so they are recomputed on next request.
func (c *Cache) NotifyChildAvailable(childHash [20]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parents, ok := c.parentsByMissingChild[childHash]
	if !ok {
		return
	}
	delete(c.parentsByMissingChild, childHash)
	for _, parent := range parents {
		delete(c.byHash, parent)
	}
}

// GetOrExtract returns the cached Summary for hash, extracting and caching
// it from data if absent.
func (c *Cache) GetOrExtract(hash [20]byte, data []byte, allowChildren bool) (*Summary, error) {
	if s, ok := c.Get(hash); ok {
		return s, nil
	}
	summary, err := Extract(data, allowChildren)
	if err != nil {
		return nil, err
	}
	c.Put(hash, summary)
	return summary, nil
}
