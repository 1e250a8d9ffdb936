package dataset

import (
	"sync"
	"time"
)

// Holder shares the latest dataset between the loader, the file
// watcher and whoever is answering queries. Safe for concurrent use.
type Holder struct {
	mu        sync.RWMutex
	ds        *DelayDataset
	updatedAt time.Time
}

// Get returns the current dataset, which may be nil before the first
// successful load.
func (h *Holder) Get() *DelayDataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ds
}

// Set swaps in a freshly loaded dataset.
func (h *Holder) Set(ds *DelayDataset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ds = ds
	h.updatedAt = time.Now()
}

// UpdatedAt reports when the dataset last changed.
func (h *Holder) UpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updatedAt
}
