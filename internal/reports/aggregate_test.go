package reports

import (
	"math"
	"testing"
	"time"

	"sales-kpi-report/internal/orders"
)

func order(id, customer string, date string, revenue, profit, qty float64, region, city, product, category string) orders.Order {
	parsed, err := orders.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return orders.Order{
		OrderID:    id,
		CustomerID: customer,
		OrderDate:  parsed,
		Revenue:    revenue,
		Profit:     profit,
		Quantity:   qty,
		Region:     region,
		City:       city,
		Product:    product,
		Category:   category,
		Year:       parsed.Year(),
		Month:      parsed.Format("2006-01"),
	}
}

func sampleTable() *orders.Table {
	return &orders.Table{Orders: []orders.Order{
		order("1", "A", "2024-01-03", 100, 25, 2, "North", "Oslo", "Widget", "Tools"),
		order("2", "B", "2024-01-20", 300, 30, 1, "South", "Rome", "Gadget", "Toys"),
		order("3", "A", "2024-02-02", 100, 5, 3, "North", "Bergen", "Widget", "Tools"),
		order("3", "A", "2024-02-02", 0, 0, 1, "North", "Bergen", "Sample", "Tools"),
	}}
}

func floatEqual(a float64, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func TestBuildKPI(t *testing.T) {
	kpi := BuildKPI(sampleTable())

	if kpi.TotalRevenue != 500 || kpi.TotalProfit != 60 {
		t.Fatalf("unexpected totals %+v", kpi)
	}
	if kpi.TotalOrders != 3 {
		t.Fatalf("expected 3 distinct order ids, got %d", kpi.TotalOrders)
	}
	if kpi.UniqueCustomers != 2 {
		t.Fatalf("expected 2 customers, got %d", kpi.UniqueCustomers)
	}
	if !floatEqual(kpi.AverageOrderValue, 125) {
		t.Fatalf("expected AOV 125, got %v", kpi.AverageOrderValue)
	}
	if !floatEqual(kpi.AverageProfitMargin, 12) {
		t.Fatalf("expected margin 12, got %v", kpi.AverageProfitMargin)
	}
}

func TestBuildKPIEmptyTableIsUndefined(t *testing.T) {
	kpi := BuildKPI(&orders.Table{})
	if !math.IsNaN(kpi.AverageOrderValue) || !math.IsNaN(kpi.AverageProfitMargin) {
		t.Fatalf("expected NaN ratios, got %+v", kpi)
	}
}

func TestBuildMonthlySorted(t *testing.T) {
	monthly := BuildMonthly(sampleTable())
	if len(monthly) != 2 {
		t.Fatalf("expected 2 months, got %d", len(monthly))
	}
	if monthly[0].Month != "2024-01" || monthly[1].Month != "2024-02" {
		t.Fatalf("months not ascending: %+v", monthly)
	}
	if monthly[0].Orders != 2 || monthly[1].Orders != 2 {
		t.Fatalf("unexpected order counts %+v", monthly)
	}
	if !floatEqual(monthly[0].ProfitMargin, 13.75) {
		t.Fatalf("expected margin 13.75, got %v", monthly[0].ProfitMargin)
	}
}

func TestZeroRevenueSliceIsNaN(t *testing.T) {
	set := Build(sampleTable())

	var sample *ProductPerformance
	for i := range set.Products {
		if set.Products[i].Product == "Sample" {
			sample = &set.Products[i]
		}
	}
	if sample == nil {
		t.Fatal("missing Sample product")
	}
	if !math.IsNaN(sample.ProfitMargin) {
		t.Fatalf("expected NaN margin for zero revenue, got %v", sample.ProfitMargin)
	}

	found := false
	for _, u := range set.Undefined {
		if u.Table == TableProduct && u.Key == "Sample" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected undefined ratio for Sample, got %+v", set.Undefined)
	}
}

func TestDimensionTables(t *testing.T) {
	set := Build(sampleTable())

	if len(set.Regions) != 2 || set.Regions[0].Region != "North" || set.Regions[0].Orders != 3 {
		t.Fatalf("unexpected regions %+v", set.Regions)
	}
	if len(set.Cities) != 3 || set.Cities[0].City != "Bergen" {
		t.Fatalf("unexpected cities %+v", set.Cities)
	}
	if len(set.Categories) != 2 || set.Categories[0].Category != "Tools" || set.Categories[0].Revenue != 200 {
		t.Fatalf("unexpected categories %+v", set.Categories)
	}

	top := TopProducts(set.Products, 1)
	if len(top) != 1 || top[0].Product != "Gadget" {
		t.Fatalf("unexpected top product %+v", top)
	}
	var widget ProductPerformance
	for _, p := range set.Products {
		if p.Product == "Widget" {
			widget = p
		}
	}
	if widget.Quantity != 5 || !floatEqual(widget.ProfitMargin, 15) {
		t.Fatalf("unexpected widget row %+v", widget)
	}
}

func TestEmptyKeysDropped(t *testing.T) {
	table := &orders.Table{Orders: []orders.Order{
		{OrderID: "1", CustomerID: "A", Region: "", Revenue: 10, OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Month: "2024-01"},
	}}
	if regions := BuildRegions(table); len(regions) != 0 {
		t.Fatalf("expected empty region key to be dropped, got %+v", regions)
	}
}
