package rfm

import (
	"math"
	"sort"
)

// Segment is a customer-value tier.
type Segment string

const (
	SegmentPremiumLoyal Segment = "Premium / Loyal"
	SegmentHighValue    Segment = "High-Value"
	SegmentPotential    Segment = "Potential"
	SegmentAtRisk       Segment = "At-Risk / Low Value"
)

// Composite score bounds for three dimensions scored 1..Quartiles.
const (
	MinScore = 3
	MaxScore = 3 * Quartiles
)

// segmentBands is matched top-down; the first band whose floor is at or
// below the score wins. The last floor covers every remaining integer.
var segmentBands = []struct {
	floor   int
	segment Segment
}{
	{10, SegmentPremiumLoyal},
	{7, SegmentHighValue},
	{5, SegmentPotential},
	{math.MinInt, SegmentAtRisk},
}

// Classify maps a composite score to its segment.
func Classify(score int) Segment {
	for _, band := range segmentBands {
		if score >= band.floor {
			return band.segment
		}
	}
	return SegmentAtRisk
}

// Segments lists every label, best first.
func Segments() []Segment {
	out := make([]Segment, len(segmentBands))
	for i, band := range segmentBands {
		out[i] = band.segment
	}
	return out
}

// SegmentSummary is one row of the segment rollup.
type SegmentSummary struct {
	Segment    Segment
	Customers  int
	AvgRevenue float64
}

// Rollup groups customers by segment. Only populated segments appear, sorted
// by label.
func Rollup(customers []Customer) []SegmentSummary {
	type acc struct {
		count int
		sum   float64
	}
	groups := map[Segment]*acc{}
	for _, c := range customers {
		a, ok := groups[c.Segment]
		if !ok {
			a = &acc{}
			groups[c.Segment] = a
		}
		a.count++
		a.sum += c.Monetary
	}

	result := make([]SegmentSummary, 0, len(groups))
	for segment, a := range groups {
		result = append(result, SegmentSummary{
			Segment:    segment,
			Customers:  a.count,
			AvgRevenue: a.sum / float64(a.count),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Segment < result[j].Segment
	})
	return result
}
