// Package rfm scores customers on recency, frequency and monetary value,
// combines the quartile scores and maps the composite to a segment.
package rfm

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"sales-kpi-report/internal/orders"
)

// Profile is the per-customer RFM input.
type Profile struct {
	CustomerID string
	// Recency is whole days between the customer's last order and the snapshot.
	Recency   int
	Frequency int
	Monetary  float64
	LastOrder time.Time
}

// SnapshotDate is one day after the latest order in the table.
func SnapshotDate(table *orders.Table) time.Time {
	return table.LatestOrderDate().Add(24 * time.Hour)
}

// BuildProfiles returns exactly one profile per distinct non-empty customer
// id, ordered by CompareCustomerIDs. Customers with zero revenue are kept.
func BuildProfiles(table *orders.Table, snapshot time.Time) []Profile {
	index := map[string]*Profile{}
	for _, o := range table.Orders {
		if o.CustomerID == "" {
			continue
		}
		p, ok := index[o.CustomerID]
		if !ok {
			p = &Profile{CustomerID: o.CustomerID, LastOrder: o.OrderDate}
			index[o.CustomerID] = p
		}
		p.Frequency++
		p.Monetary += o.Revenue
		if o.OrderDate.After(p.LastOrder) {
			p.LastOrder = o.OrderDate
		}
	}

	profiles := make([]Profile, 0, len(index))
	for _, p := range index {
		p.Recency = recencyDays(snapshot, p.LastOrder)
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return CompareCustomerIDs(profiles[i].CustomerID, profiles[j].CustomerID) < 0
	})
	return profiles
}

func recencyDays(snapshot, last time.Time) int {
	if !snapshot.After(last) {
		return 0
	}
	return int(snapshot.Sub(last) / (24 * time.Hour))
}

// CompareCustomerIDs compares numeric ids numerically and sorts them ahead of
// text ids, which compare lexically.
func CompareCustomerIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
