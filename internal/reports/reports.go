// Package reports holds the group-by-and-summarize tables computed from the
// order table: KPI summary, monthly trend, and region, city, product and
// category breakdowns.
package reports

import (
	"math"
	"sort"

	"sales-kpi-report/internal/orders"
)

// UndefinedRatio records a ratio that came out NaN because its denominator
// was zero.
type UndefinedRatio struct {
	Table  string
	Key    string
	Metric string
}

// KPISummary is the single-row headline table.
type KPISummary struct {
	TotalRevenue        float64
	TotalProfit         float64
	AverageOrderValue   float64
	TotalOrders         int
	UniqueCustomers     int
	AverageProfitMargin float64
}

// MonthlyTrend is one calendar month.
type MonthlyTrend struct {
	Month        string
	Revenue      float64
	Profit       float64
	Orders       int
	ProfitMargin float64
}

// RegionPerformance is one region.
type RegionPerformance struct {
	Region       string
	Revenue      float64
	Profit       float64
	Orders       int
	ProfitMargin float64
}

// CitySales is one city.
type CitySales struct {
	City    string
	Revenue float64
	Profit  float64
}

// ProductPerformance is one product.
type ProductPerformance struct {
	Product      string
	Revenue      float64
	Profit       float64
	Quantity     float64
	ProfitMargin float64
}

// CategoryPerformance is one category.
type CategoryPerformance struct {
	Category     string
	Revenue      float64
	Profit       float64
	ProfitMargin float64
}

// Set bundles every aggregation computed over one table.
type Set struct {
	KPI        KPISummary
	Monthly    []MonthlyTrend
	Regions    []RegionPerformance
	Cities     []CitySales
	Products   []ProductPerformance
	Categories []CategoryPerformance
	Undefined  []UndefinedRatio
}

// Ratio returns num/den, or NaN when den is zero.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Margin returns profit as a percentage of revenue, NaN for zero revenue.
func Margin(profit, revenue float64) float64 {
	return Ratio(profit, revenue) * 100
}

// bucket accumulates one group. Rows with an empty key are skipped by the
// callers, as a group-by over missing values would drop them.
type bucket struct {
	key      string
	revenue  float64
	profit   float64
	quantity float64
	orders   int
}

func groupBy(table *orders.Table, keyOf func(orders.Order) string) []*bucket {
	index := map[string]*bucket{}
	for _, o := range table.Orders {
		key := keyOf(o)
		if key == "" {
			continue
		}
		b, ok := index[key]
		if !ok {
			b = &bucket{key: key}
			index[key] = b
		}
		b.revenue += o.Revenue
		b.profit += o.Profit
		b.quantity += o.Quantity
		b.orders++
	}
	result := make([]*bucket, 0, len(index))
	for _, b := range index {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].key < result[j].key
	})
	return result
}
