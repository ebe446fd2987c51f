package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// hostFilter holds canonical domain rules. Writes happen while the URL matcher
// rebuilds for a new rule set; reads come from every match call.
type hostFilter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (h *hostFilter) AddHost(host string) {
	if host == "" {
		return
	}
	h.mu.Lock()
	h.bf.AddString(host)
	h.mu.Unlock()
}

func (h *hostFilter) MightContainHost(host string) bool {
	if host == "" {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bf.TestString(host)
}

// ApproxCount estimates how many distinct hosts were added.
func (h *hostFilter) ApproxCount() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bf.ApproximatedSize()
}
