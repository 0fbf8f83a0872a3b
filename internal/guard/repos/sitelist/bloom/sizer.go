package bloom

import (
	"math"

	"github.com/haukened/navguard/internal/guard/repos/sitelist"
)

const (
	defaultFPRate = 0.01
	// maxHashes bounds k for very low FP targets; beyond this lookups get
	// slower without a useful accuracy gain at site-list sizes.
	maxHashes = 24
)

// sizer implements sitelist.BloomSizer:
//
//	m = ceil(-(n * ln p) / (ln 2)^2)
//	k = round((m / n) * ln 2), clamped to [1, maxHashes]
type sizer struct{}

// NewSizer returns a BloomSizer implementation.
func NewSizer() sitelist.BloomSizer { return sizer{} }

func (sizer) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = defaultFPRate
	}
	bitsPerKey := -math.Log(p) / (math.Ln2 * math.Ln2)
	m := uint64(math.Ceil(float64(n) * bitsPerKey))
	if m == 0 {
		m = 1
	}
	k := math.Round(float64(m) / float64(n) * math.Ln2)
	k = math.Min(math.Max(k, 1), maxHashes)
	return m, uint8(k)
}
