package orders

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Options tunes Load.
type Options struct {
	// Sheet selects the worksheet of an xlsx input; empty means the first.
	Sheet string
}

var columnAliases = map[string][]string{
	ColOrderID:    {"order_id", "orderid", "order", "order_no", "order_number"},
	ColCustomerID: {"customer_id", "customerid", "customer", "client_id"},
	ColOrderDate:  {"order_date", "orderdate", "date", "purchase_date"},
	ColRevenue:    {"revenue", "sales", "amount", "total_amount"},
	ColProfit:     {"profit"},
	ColQuantity:   {"quantity", "qty", "units"},
	ColRegion:     {"region"},
	ColCity:       {"city"},
	ColProduct:    {"product", "product_name"},
	ColCategory:   {"category", "product_category"},
}

// rowSource yields raw string records; the first record is the header.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

// Load reads the order table at path. CSV and xlsx inputs are supported.
func Load(path string, opts Options) (*Table, error) {
	src, err := openSource(path, opts)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	headers, err := src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Path: path, Reason: "empty input"}
		}
		return nil, &LoadError{Path: path, Reason: "unable to read header", Err: err}
	}

	colMap := normalizeHeaders(headers)
	idx := make(map[string]int, len(Columns))
	used := make(map[int]bool, len(Columns))
	var missing []string
	for _, col := range Columns {
		i, ok := findColumn(colMap, append([]string{col}, columnAliases[col]...))
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[col] = i
		used[i] = true
	}
	if len(missing) > 0 {
		return nil, &LoadError{Path: path, Reason: "missing required columns " + strings.Join(missing, ", ")}
	}

	table := &Table{
		Source: path,
		Stats:  LoadStats{Missing: map[string]int{}},
	}
	var extraIdx []int
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if used[i] || name == "" || isDerivedColumn(name) {
			continue
		}
		extraIdx = append(extraIdx, i)
		table.ExtraColumns = append(table.ExtraColumns, name)
	}

	seen := map[string]struct{}{}
	row := 1
	for {
		record, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unable to read row %d", row+1), Err: err}
		}
		row++
		if isBlank(record) {
			table.Stats.BlankRows++
			continue
		}
		table.Stats.RawRows++

		for _, col := range Columns {
			if getValue(record, idx[col]) == "" {
				table.Stats.Missing[col]++
			}
		}

		order, err := parseOrder(record, idx, row)
		if err != nil {
			var dateErr *DateParseError
			if errors.As(err, &dateErr) {
				return nil, err
			}
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("row %d", row), Err: err}
		}
		for _, i := range extraIdx {
			order.Extra = append(order.Extra, getValue(record, i))
		}

		key := order.key()
		if _, dup := seen[key]; dup {
			table.Stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		table.Orders = append(table.Orders, order)
	}

	return table, nil
}

func parseOrder(record []string, idx map[string]int, row int) (Order, error) {
	rawDate := getValue(record, idx[ColOrderDate])
	orderDate, err := ParseDate(rawDate)
	if err != nil {
		return Order{}, &DateParseError{Row: row, Value: rawDate}
	}

	revenue, err := parseNumber(getValue(record, idx[ColRevenue]))
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", ColRevenue, err)
	}
	profit, err := parseNumber(getValue(record, idx[ColProfit]))
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", ColProfit, err)
	}
	quantity, err := parseNumber(getValue(record, idx[ColQuantity]))
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", ColQuantity, err)
	}

	return Order{
		OrderID:    getValue(record, idx[ColOrderID]),
		CustomerID: getValue(record, idx[ColCustomerID]),
		OrderDate:  orderDate,
		Revenue:    revenue,
		Profit:     profit,
		Quantity:   quantity,
		Region:     getValue(record, idx[ColRegion]),
		City:       getValue(record, idx[ColCity]),
		Product:    getValue(record, idx[ColProduct]),
		Category:   getValue(record, idx[ColCategory]),
		Year:       orderDate.Year(),
		Month:      orderDate.Format("2006-01"),
	}, nil
}

// parseNumber treats an empty cell as zero so sums skip it.
func parseNumber(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	value = strings.ReplaceAll(value, ",", "")
	value = strings.TrimPrefix(value, "$")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return parsed, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"1/2/2006",
	"20060102",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
}

// maxExcelSerial is 9999-12-31, the last day Excel can represent.
const maxExcelSerial = 2958465

// ParseDate accepts the common spreadsheet date layouts and Excel serial day
// numbers. The result is always in UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 1 && serial < maxExcelSerial+1 {
		parsed, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return parsed.UTC().Round(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}

func openSource(path string, opts Options) (rowSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return openWorkbook(path, opts.Sheet)
	default:
		return openCSV(path)
	}
}

type csvSource struct {
	file   *os.File
	reader *csv.Reader
}

func openCSV(path string) (*csvSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "unable to open input", Err: err}
	}
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return &csvSource{file: file, reader: reader}, nil
}

func (s *csvSource) Next() ([]string, error) {
	return s.reader.Read()
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

type workbookSource struct {
	file *excelize.File
	rows *excelize.Rows
}

func openWorkbook(path, sheet string) (*workbookSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "unable to open workbook", Err: err}
	}
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			_ = f.Close()
			return nil, &LoadError{Path: path, Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unable to read sheet %q", sheet), Err: err}
	}
	return &workbookSource{file: f, rows: rows}, nil
}

// Next returns raw cell values so dates arrive as serial numbers instead of
// locale-formatted text.
func (s *workbookSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns(excelize.Options{RawCellValue: true})
}

func (s *workbookSource) Close() error {
	_ = s.rows.Close()
	return s.file.Close()
}

func isDerivedColumn(name string) bool {
	n := normalizeHeader(name)
	return n == "year" || n == "month"
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
