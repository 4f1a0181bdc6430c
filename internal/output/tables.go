// Package output renders the report tables and writes them out: delimited
// files, an optional workbook, a trend chart, a console preview and a run
// manifest.
package output

import (
	"strconv"

	"sales-kpi-report/internal/orders"
	"sales-kpi-report/internal/reports"
	"sales-kpi-report/internal/rfm"
)

// Table is one flat output table.
type Table struct {
	Name   string
	File   string
	Header []string
	Rows   [][]string
	// TextColumns are kept as text by typed sinks even when every value
	// looks numeric, so identifiers keep leading zeros and full precision.
	TextColumns []string
}

// IsText reports whether column i must stay text.
func (t Table) IsText(i int) bool {
	if i < 0 || i >= len(t.Header) {
		return false
	}
	for _, name := range t.TextColumns {
		if name == t.Header[i] {
			return true
		}
	}
	return false
}

// Table names.
const (
	NameRFM         = "rfm_segmentation"
	NameSegments    = "segment_summary"
	NameCleanedData = "clean_dataset"
)

// FilePrefix is prepended to every table name to form its file name.
const FilePrefix = "output_"

func newTable(name string, header []string) Table {
	return Table{Name: name, File: FilePrefix + name + ".csv", Header: header}
}

func num(v float64) string {
	return orders.FormatNumber(v)
}

func integer(v int) string {
	return strconv.Itoa(v)
}

// Build renders every table in a fixed order.
func Build(table *orders.Table, set *reports.Set, segmentation *rfm.Result) []Table {
	return []Table{
		kpiTable(set.KPI),
		monthlyTable(set.Monthly),
		regionTable(set.Regions),
		cityTable(set.Cities),
		productTable(set.Products),
		categoryTable(set.Categories),
		rfmTable(segmentation.Customers),
		segmentTable(segmentation.Segments),
		cleanedTable(table),
	}
}

func kpiTable(kpi reports.KPISummary) Table {
	t := newTable(reports.TableKPI, []string{
		"Total Revenue", "Total Profit", "Average Order Value",
		"Total Orders", "Unique Customers", "Average Profit Margin %",
	})
	t.Rows = [][]string{{
		num(kpi.TotalRevenue),
		num(kpi.TotalProfit),
		num(kpi.AverageOrderValue),
		integer(kpi.TotalOrders),
		integer(kpi.UniqueCustomers),
		num(kpi.AverageProfitMargin),
	}}
	return t
}

func monthlyTable(rows []reports.MonthlyTrend) Table {
	t := newTable(reports.TableMonthly, []string{"Month", "Revenue", "Profit", "Orders", "Profit Margin %"})
	t.TextColumns = []string{"Month"}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Month, num(r.Revenue), num(r.Profit), integer(r.Orders), num(r.ProfitMargin)})
	}
	return t
}

func regionTable(rows []reports.RegionPerformance) Table {
	t := newTable(reports.TableRegion, []string{"Region", "Revenue", "Profit", "Orders", "Profit Margin %"})
	t.TextColumns = []string{"Region"}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Region, num(r.Revenue), num(r.Profit), integer(r.Orders), num(r.ProfitMargin)})
	}
	return t
}

func cityTable(rows []reports.CitySales) Table {
	t := newTable(reports.TableCity, []string{"City", "Revenue", "Profit"})
	t.TextColumns = []string{"City"}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.City, num(r.Revenue), num(r.Profit)})
	}
	return t
}

func productTable(rows []reports.ProductPerformance) Table {
	t := newTable(reports.TableProduct, []string{"Product", "Revenue", "Profit", "Quantity", "Profit Margin %"})
	t.TextColumns = []string{"Product"}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Product, num(r.Revenue), num(r.Profit), num(r.Quantity), num(r.ProfitMargin)})
	}
	return t
}

func categoryTable(rows []reports.CategoryPerformance) Table {
	t := newTable(reports.TableCategory, []string{"Category", "Revenue", "Profit", "Profit Margin %"})
	t.TextColumns = []string{"Category"}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Category, num(r.Revenue), num(r.Profit), num(r.ProfitMargin)})
	}
	return t
}

func rfmTable(customers []rfm.Customer) Table {
	t := newTable(NameRFM, []string{
		"CustomerID", "Recency", "Frequency", "Monetary",
		"R_Score", "F_Score", "M_Score", "RFM_Score", "Segment",
	})
	t.TextColumns = []string{"CustomerID", "Segment"}
	for _, c := range customers {
		t.Rows = append(t.Rows, []string{
			c.CustomerID,
			integer(c.Recency),
			integer(c.Frequency),
			num(c.Monetary),
			integer(c.RScore),
			integer(c.FScore),
			integer(c.MScore),
			integer(c.RFMScore),
			string(c.Segment),
		})
	}
	return t
}

func segmentTable(rows []rfm.SegmentSummary) Table {
	t := newTable(NameSegments, []string{"Segment", "Customers", "AvgRevenue"})
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{string(r.Segment), integer(r.Customers), num(r.AvgRevenue)})
	}
	return t
}

func cleanedTable(table *orders.Table) Table {
	t := newTable(NameCleanedData, table.Header())
	t.TextColumns = []string{
		orders.ColOrderID, orders.ColCustomerID, orders.ColRegion,
		orders.ColCity, orders.ColProduct, orders.ColCategory, "Month",
	}
	t.Rows = make([][]string, 0, table.Len())
	for _, o := range table.Orders {
		t.Rows = append(t.Rows, o.Record())
	}
	return t
}
