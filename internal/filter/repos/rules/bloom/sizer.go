package bloom

import (
	"math"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-block/internal/filter/repos/rules"
)

// DefaultFPRate applies when a caller passes a rate outside (0, 1).
const DefaultFPRate = 0.01

// estimator sizes filters with bitsbloom.EstimateParameters. An empty rule
// set still gets a one-entry filter so lookups stay valid.
type estimator struct{}

// NewSizer returns the BloomSizer used by NewFactory.
func NewSizer() rules.BloomSizer { return estimator{} }

func (estimator) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		p = DefaultFPRate
	}
	m, k := bitsbloom.EstimateParameters(uint(n), p)
	if m == 0 {
		m = 1
	}
	if k == 0 {
		k = 1
	}
	if k > math.MaxUint8 {
		k = math.MaxUint8
	}
	return uint64(m), uint8(k)
}
