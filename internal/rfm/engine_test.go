package rfm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"sales-kpi-report/internal/orders"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tableOf(rows ...orders.Order) *orders.Table {
	for i := range rows {
		if rows[i].OrderID == "" {
			rows[i].OrderID = fmt.Sprintf("O%d", i+1)
		}
		rows[i].Month = rows[i].OrderDate.Format("2006-01")
		rows[i].Year = rows[i].OrderDate.Year()
	}
	return &orders.Table{Orders: rows}
}

func TestRunFourCustomersSameDate(t *testing.T) {
	date := day(2024, 5, 1)
	table := tableOf(
		orders.Order{CustomerID: "1", OrderDate: date, Revenue: 100},
		orders.Order{CustomerID: "2", OrderDate: date, Revenue: 200},
		orders.Order{CustomerID: "3", OrderDate: date, Revenue: 300},
		orders.Order{CustomerID: "4", OrderDate: date, Revenue: 400},
	)

	result, err := Run(table, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Snapshot.Equal(day(2024, 5, 2)) {
		t.Fatalf("unexpected snapshot %v", result.Snapshot)
	}

	seenR := map[int]bool{}
	for i, c := range result.Customers {
		if c.Recency != 1 {
			t.Fatalf("expected recency 1, got %d", c.Recency)
		}
		if c.MScore != i+1 {
			t.Fatalf("customer %s: expected M score %d, got %d", c.CustomerID, i+1, c.MScore)
		}
		seenR[c.RScore] = true
		if c.RFMScore != c.RScore+c.FScore+c.MScore {
			t.Fatalf("composite mismatch for %+v", c)
		}
		if c.Segment != Classify(c.RFMScore) {
			t.Fatalf("segment mismatch for %+v", c)
		}
	}
	if len(seenR) != Quartiles {
		t.Fatalf("expected all four R labels on tied recency, got %v", seenR)
	}
}

func TestRunThreeCustomersFails(t *testing.T) {
	date := day(2024, 5, 1)
	table := tableOf(
		orders.Order{CustomerID: "A", OrderDate: date, Revenue: 1},
		orders.Order{CustomerID: "B", OrderDate: date, Revenue: 2},
		orders.Order{CustomerID: "C", OrderDate: date, Revenue: 3},
		orders.Order{CustomerID: "C", OrderDate: date.AddDate(0, 0, 3), Revenue: 3},
	)

	_, err := Run(table, nil)
	var popErr *InsufficientPopulationError
	if !errors.As(err, &popErr) {
		t.Fatalf("expected InsufficientPopulationError, got %v", err)
	}
	if popErr.Customers != 3 {
		t.Fatalf("expected 3 customers in error, got %d", popErr.Customers)
	}
}

func TestRunProfilesAndInvariants(t *testing.T) {
	table := tableOf(
		orders.Order{CustomerID: "A", OrderDate: day(2024, 1, 1), Revenue: 50},
		orders.Order{CustomerID: "A", OrderDate: day(2024, 3, 1), Revenue: 70},
		orders.Order{CustomerID: "B", OrderDate: day(2024, 2, 10), Revenue: 0},
		orders.Order{CustomerID: "C", OrderDate: day(2024, 3, 30), Revenue: 500},
		orders.Order{CustomerID: "C", OrderDate: day(2024, 3, 31), Revenue: 20},
		orders.Order{CustomerID: "C", OrderDate: day(2024, 1, 15), Revenue: 5},
		orders.Order{CustomerID: "D", OrderDate: day(2023, 12, 1), Revenue: 10},
		orders.Order{CustomerID: "E", OrderDate: day(2024, 3, 15), Revenue: 90},
		orders.Order{CustomerID: "", OrderDate: day(2024, 3, 15), Revenue: 1000},
	)

	result, err := Run(table, DefaultDimensions)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Customers) != 5 {
		t.Fatalf("expected 5 customers, got %d", len(result.Customers))
	}

	snapshot := day(2024, 4, 1)
	byID := map[string]Customer{}
	for _, c := range result.Customers {
		byID[c.CustomerID] = c
		want := int(snapshot.Sub(c.LastOrder).Hours() / 24)
		if c.Recency < 0 || c.Recency != want {
			t.Fatalf("customer %s: recency %d, want %d", c.CustomerID, c.Recency, want)
		}
		for _, s := range []int{c.RScore, c.FScore, c.MScore} {
			if s < 1 || s > Quartiles {
				t.Fatalf("score out of range for %+v", c)
			}
		}
		if c.RFMScore < MinScore || c.RFMScore > MaxScore {
			t.Fatalf("composite out of range for %+v", c)
		}
	}

	a := byID["A"]
	if a.Frequency != 2 || a.Monetary != 120 || a.Recency != 31 {
		t.Fatalf("unexpected profile for A: %+v", a.Profile)
	}
	b, ok := byID["B"]
	if !ok || b.Monetary != 0 || b.Frequency != 1 {
		t.Fatalf("zero-revenue customer must be kept, got %+v", b)
	}
	if byID["C"].Recency != 1 || byID["C"].RScore != 4 {
		t.Fatalf("most recent customer should have recency 1 and R=4, got %+v", byID["C"])
	}

	total := 0
	for _, s := range result.Segments {
		total += s.Customers
	}
	if total != len(result.Customers) {
		t.Fatalf("segment counts sum to %d, want %d", total, len(result.Customers))
	}
}

func TestRunRejectsIncompleteDimensions(t *testing.T) {
	table := tableOf(
		orders.Order{CustomerID: "A", OrderDate: day(2024, 1, 1)},
	)
	if _, err := Run(table, DefaultDimensions[:2]); err == nil {
		t.Fatal("expected error for missing monetary dimension")
	}
}
