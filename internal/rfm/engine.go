package rfm

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-kpi-report/internal/orders"
)

// Customer is a scored and classified profile.
type Customer struct {
	Profile
	RScore   int
	FScore   int
	MScore   int
	RFMScore int
	Segment  Segment
}

// Result is the full output of one segmentation run.
type Result struct {
	Snapshot  time.Time
	Customers []Customer
	Segments  []SegmentSummary
}

// Run builds profiles from the table, scores the three dimensions
// concurrently, classifies each customer and rolls up the segments. A nil
// dims uses DefaultDimensions.
func Run(table *orders.Table, dims []DimensionConfig) (*Result, error) {
	if dims == nil {
		dims = DefaultDimensions
	}
	byDim := make(map[Dimension]DimensionConfig, len(dims))
	for _, d := range dims {
		if _, dup := byDim[d.Dimension]; dup {
			return nil, fmt.Errorf("rfm: dimension %s configured twice", d.Dimension)
		}
		byDim[d.Dimension] = d
	}
	for _, d := range []Dimension{Recency, Frequency, Monetary} {
		if _, ok := byDim[d]; !ok {
			return nil, fmt.Errorf("rfm: dimension %s not configured", d)
		}
	}

	snapshot := SnapshotDate(table)
	profiles := BuildProfiles(table, snapshot)
	if len(profiles) < Quartiles {
		return nil, &InsufficientPopulationError{Customers: len(profiles), Required: Quartiles}
	}

	var rScores, fScores, mScores []int
	var g errgroup.Group
	g.Go(func() (err error) {
		rScores, err = Score(profiles, byDim[Recency])
		return err
	})
	g.Go(func() (err error) {
		fScores, err = Score(profiles, byDim[Frequency])
		return err
	})
	g.Go(func() (err error) {
		mScores, err = Score(profiles, byDim[Monetary])
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	customers := make([]Customer, len(profiles))
	for i, p := range profiles {
		composite := rScores[i] + fScores[i] + mScores[i]
		customers[i] = Customer{
			Profile:  p,
			RScore:   rScores[i],
			FScore:   fScores[i],
			MScore:   mScores[i],
			RFMScore: composite,
			Segment:  Classify(composite),
		}
	}

	return &Result{
		Snapshot:  snapshot,
		Customers: customers,
		Segments:  Rollup(customers),
	}, nil
}
