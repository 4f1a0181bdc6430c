package rfm

import (
	"fmt"
	"sort"
)

// Quartiles is the number of score groups per dimension.
const Quartiles = 4

// Dimension names one RFM axis.
type Dimension string

const (
	Recency   Dimension = "recency"
	Frequency Dimension = "frequency"
	Monetary  Dimension = "monetary"
)

// Value extracts the raw dimension value from a profile.
func (d Dimension) Value(p Profile) (float64, error) {
	switch d {
	case Recency:
		return float64(p.Recency), nil
	case Frequency:
		return float64(p.Frequency), nil
	case Monetary:
		return p.Monetary, nil
	default:
		return 0, fmt.Errorf("rfm: unknown dimension %q", d)
	}
}

// Direction says which end of a dimension is better.
type Direction int

const (
	// Ascending gives the highest raw values score 4.
	Ascending Direction = iota
	// Descending gives the lowest raw values score 4.
	Descending
)

// TieBreak orders customers that share a raw value.
type TieBreak int

const (
	TieBreakCustomerID TieBreak = iota
)

func (t TieBreak) less(a, b Profile) bool {
	switch t {
	case TieBreakCustomerID:
		return CompareCustomerIDs(a.CustomerID, b.CustomerID) < 0
	default:
		return false
	}
}

// DimensionConfig is the scoring policy for one dimension.
type DimensionConfig struct {
	Dimension Dimension
	Direction Direction
	TieBreak  TieBreak
}

// DefaultDimensions scores recent, frequent, high-spending customers highest.
var DefaultDimensions = []DimensionConfig{
	{Dimension: Recency, Direction: Descending, TieBreak: TieBreakCustomerID},
	{Dimension: Frequency, Direction: Ascending, TieBreak: TieBreakCustomerID},
	{Dimension: Monetary, Direction: Ascending, TieBreak: TieBreakCustomerID},
}

// Score assigns each profile a label in 1..4 for one dimension. Customers are
// ranked by raw value with the tie-break giving every customer a unique rank,
// and the ranks are cut at the 25th, 50th and 75th percentiles. The returned
// slice is aligned with profiles.
func Score(profiles []Profile, cfg DimensionConfig) ([]int, error) {
	n := len(profiles)
	if n < Quartiles {
		return nil, &InsufficientPopulationError{Dimension: cfg.Dimension, Customers: n, Required: Quartiles}
	}

	values := make([]float64, n)
	for i, p := range profiles {
		v, err := cfg.Dimension.Value(p)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := values[order[a]], values[order[b]]
		if va != vb {
			return va < vb
		}
		return cfg.TieBreak.less(profiles[order[a]], profiles[order[b]])
	})

	scores := make([]int, n)
	var counts [Quartiles]int
	for rank, idx := range order {
		bin := quartileBin(rank, n)
		counts[bin]++
		if cfg.Direction == Descending {
			scores[idx] = Quartiles - bin
		} else {
			scores[idx] = bin + 1
		}
	}
	for _, c := range counts {
		if c == 0 {
			return nil, &InsufficientPopulationError{Dimension: cfg.Dimension, Customers: n, Required: Quartiles}
		}
	}
	return scores, nil
}

// quartileBin places the zero-based rank among n ranks. Boundary k sits at
// the linearly interpolated quantile k/4 of ranks 0..n-1, i.e. (n-1)k/4; a
// rank lands above the boundary when 4*rank > (n-1)k. Integer arithmetic
// keeps boundary placement exact.
func quartileBin(rank, n int) int {
	bin := 0
	for k := 1; k < Quartiles; k++ {
		if Quartiles*rank > (n-1)*k {
			bin++
		}
	}
	return bin
}
