package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-block/internal/filter/repos/rules"
)

// factory implements rules.BloomFactory on top of a BloomSizer.
type factory struct {
	sizer rules.BloomSizer
}

// NewFactory returns a BloomFactory whose filters hold hostnames.
func NewFactory() rules.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs a filter for the given capacity and target false-positive rate.
func (f factory) New(capacity uint64, fpRate float64) rules.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &hostFilter{bf: bitsbloom.New(uint(m), uint(k))}
}
