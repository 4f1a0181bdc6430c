// Package orders loads the raw sales order table, normalizes dates, derives
// calendar keys and removes duplicate rows.
package orders

import (
	"strconv"
	"strings"
	"time"
)

// Required column names in output order.
const (
	ColOrderID    = "OrderID"
	ColCustomerID = "CustomerID"
	ColOrderDate  = "OrderDate"
	ColRevenue    = "Revenue"
	ColProfit     = "Profit"
	ColQuantity   = "Quantity"
	ColRegion     = "Region"
	ColCity       = "City"
	ColProduct    = "Product"
	ColCategory   = "Category"
)

// Columns lists the required input columns in canonical order.
var Columns = []string{
	ColOrderID, ColCustomerID, ColOrderDate, ColRevenue, ColProfit,
	ColQuantity, ColRegion, ColCity, ColProduct, ColCategory,
}

// Order is one loaded order row. It is never mutated after Load returns.
type Order struct {
	OrderID    string
	CustomerID string
	OrderDate  time.Time
	Revenue    float64
	Profit     float64
	Quantity   float64
	Region     string
	City       string
	Product    string
	Category   string

	// Year and Month ("2006-01") are derived from OrderDate.
	Year  int
	Month string

	// Extra holds values of input columns outside the required set, in
	// Table.ExtraColumns order.
	Extra []string
}

// LoadStats describes what happened while loading.
type LoadStats struct {
	RawRows    int
	Duplicates int
	BlankRows  int
	// Missing counts empty cells per required column.
	Missing map[string]int
}

// Table is the deduplicated, in-memory order table.
type Table struct {
	Source       string
	Orders       []Order
	ExtraColumns []string
	Stats        LoadStats
}

// Len returns the number of orders.
func (t *Table) Len() int {
	return len(t.Orders)
}

// LatestOrderDate returns the maximum order date, or the zero time for an
// empty table.
func (t *Table) LatestOrderDate() time.Time {
	var latest time.Time
	for _, o := range t.Orders {
		if o.OrderDate.After(latest) {
			latest = o.OrderDate
		}
	}
	return latest
}

// Header returns the cleaned dataset header: input columns followed by the
// derived Year and Month.
func (t *Table) Header() []string {
	header := make([]string, 0, len(Columns)+len(t.ExtraColumns)+2)
	header = append(header, Columns...)
	header = append(header, t.ExtraColumns...)
	return append(header, "Year", "Month")
}

// Record renders an order in Header order.
func (o Order) Record() []string {
	record := []string{
		o.OrderID,
		o.CustomerID,
		FormatDate(o.OrderDate),
		FormatNumber(o.Revenue),
		FormatNumber(o.Profit),
		FormatNumber(o.Quantity),
		o.Region,
		o.City,
		o.Product,
		o.Category,
	}
	record = append(record, o.Extra...)
	return append(record, strconv.Itoa(o.Year), o.Month)
}

// key identifies a row for duplicate removal; two orders with equal keys are
// identical in every column.
func (o Order) key() string {
	var b strings.Builder
	for _, field := range o.Record() {
		b.WriteString(field)
		b.WriteByte(0x1f)
	}
	return b.String()
}

// FormatDate writes a date without a clock when it falls on midnight.
func FormatDate(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 && value.Nanosecond() == 0 {
		return value.Format("2006-01-02")
	}
	return value.Format("2006-01-02 15:04:05")
}

// FormatNumber renders v in its shortest exact decimal form. NaN is written
// as "NaN".
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
