package reports

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"sales-kpi-report/internal/orders"
)

// Table names used in UndefinedRatio and by the writers.
const (
	TableKPI      = "kpi_summary"
	TableMonthly  = "monthly_sales"
	TableRegion   = "region_performance"
	TableCity     = "city_sales"
	TableProduct  = "product_performance"
	TableCategory = "category_performance"
)

// Build computes every aggregation. Branches read the same immutable table
// and run concurrently.
func Build(table *orders.Table) *Set {
	set := &Set{}
	var g errgroup.Group
	g.Go(func() error { set.KPI = BuildKPI(table); return nil })
	g.Go(func() error { set.Monthly = BuildMonthly(table); return nil })
	g.Go(func() error { set.Regions = BuildRegions(table); return nil })
	g.Go(func() error { set.Cities = BuildCities(table); return nil })
	g.Go(func() error { set.Products = BuildProducts(table); return nil })
	g.Go(func() error { set.Categories = BuildCategories(table); return nil })
	_ = g.Wait()

	set.Undefined = collectUndefined(set)
	return set
}

// BuildKPI computes the headline numbers. Average Order Value is the mean
// revenue per order row.
func BuildKPI(table *orders.Table) KPISummary {
	var kpi KPISummary
	orderIDs := map[string]struct{}{}
	customers := map[string]struct{}{}
	for _, o := range table.Orders {
		kpi.TotalRevenue += o.Revenue
		kpi.TotalProfit += o.Profit
		if o.OrderID != "" {
			orderIDs[o.OrderID] = struct{}{}
		}
		if o.CustomerID != "" {
			customers[o.CustomerID] = struct{}{}
		}
	}
	kpi.TotalOrders = len(orderIDs)
	kpi.UniqueCustomers = len(customers)
	kpi.AverageOrderValue = Ratio(kpi.TotalRevenue, float64(table.Len()))
	kpi.AverageProfitMargin = Margin(kpi.TotalProfit, kpi.TotalRevenue)
	return kpi
}

// BuildMonthly returns one row per YYYY-MM, ascending.
func BuildMonthly(table *orders.Table) []MonthlyTrend {
	buckets := groupBy(table, func(o orders.Order) string { return o.Month })
	result := make([]MonthlyTrend, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, MonthlyTrend{
			Month:        b.key,
			Revenue:      b.revenue,
			Profit:       b.profit,
			Orders:       b.orders,
			ProfitMargin: Margin(b.profit, b.revenue),
		})
	}
	return result
}

// BuildRegions returns one row per region.
func BuildRegions(table *orders.Table) []RegionPerformance {
	buckets := groupBy(table, func(o orders.Order) string { return o.Region })
	result := make([]RegionPerformance, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, RegionPerformance{
			Region:       b.key,
			Revenue:      b.revenue,
			Profit:       b.profit,
			Orders:       b.orders,
			ProfitMargin: Margin(b.profit, b.revenue),
		})
	}
	return result
}

// BuildCities returns one row per city.
func BuildCities(table *orders.Table) []CitySales {
	buckets := groupBy(table, func(o orders.Order) string { return o.City })
	result := make([]CitySales, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, CitySales{City: b.key, Revenue: b.revenue, Profit: b.profit})
	}
	return result
}

// BuildProducts returns one row per product.
func BuildProducts(table *orders.Table) []ProductPerformance {
	buckets := groupBy(table, func(o orders.Order) string { return o.Product })
	result := make([]ProductPerformance, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, ProductPerformance{
			Product:      b.key,
			Revenue:      b.revenue,
			Profit:       b.profit,
			Quantity:     b.quantity,
			ProfitMargin: Margin(b.profit, b.revenue),
		})
	}
	return result
}

// BuildCategories returns one row per category.
func BuildCategories(table *orders.Table) []CategoryPerformance {
	buckets := groupBy(table, func(o orders.Order) string { return o.Category })
	result := make([]CategoryPerformance, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, CategoryPerformance{
			Category:     b.key,
			Revenue:      b.revenue,
			Profit:       b.profit,
			ProfitMargin: Margin(b.profit, b.revenue),
		})
	}
	return result
}

// TopProducts returns up to n products by descending revenue.
func TopProducts(products []ProductPerformance, n int) []ProductPerformance {
	sorted := append([]ProductPerformance{}, products...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Revenue > sorted[j].Revenue
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func collectUndefined(set *Set) []UndefinedRatio {
	var out []UndefinedRatio
	if math.IsNaN(set.KPI.AverageOrderValue) {
		out = append(out, UndefinedRatio{Table: TableKPI, Metric: "Average Order Value"})
	}
	if math.IsNaN(set.KPI.AverageProfitMargin) {
		out = append(out, UndefinedRatio{Table: TableKPI, Metric: "Average Profit Margin %"})
	}
	for _, m := range set.Monthly {
		if math.IsNaN(m.ProfitMargin) {
			out = append(out, UndefinedRatio{Table: TableMonthly, Key: m.Month, Metric: "Profit Margin %"})
		}
	}
	for _, r := range set.Regions {
		if math.IsNaN(r.ProfitMargin) {
			out = append(out, UndefinedRatio{Table: TableRegion, Key: r.Region, Metric: "Profit Margin %"})
		}
	}
	for _, p := range set.Products {
		if math.IsNaN(p.ProfitMargin) {
			out = append(out, UndefinedRatio{Table: TableProduct, Key: p.Product, Metric: "Profit Margin %"})
		}
	}
	for _, c := range set.Categories {
		if math.IsNaN(c.ProfitMargin) {
			out = append(out, UndefinedRatio{Table: TableCategory, Key: c.Category, Metric: "Profit Margin %"})
		}
	}
	return out
}
