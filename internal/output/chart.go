package output

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"sales-kpi-report/internal/reports"
)

// WriteTrendChart renders monthly revenue and profit as grouped bars. The
// image format follows the file extension.
func WriteTrendChart(path string, monthly []reports.MonthlyTrend) error {
	if len(monthly) == 0 {
		return errors.New("no monthly data to chart")
	}

	revenue := make(plotter.Values, len(monthly))
	profit := make(plotter.Values, len(monthly))
	months := make([]string, len(monthly))
	for i, m := range monthly {
		revenue[i] = m.Revenue
		profit[i] = m.Profit
		months[i] = m.Month
	}

	p := plot.New()
	p.Title.Text = "Monthly Sales Trend"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.Text = "Amount"

	width := vg.Points(14)
	revenueBars, err := plotter.NewBarChart(revenue, width)
	if err != nil {
		return fmt.Errorf("revenue bars: %w", err)
	}
	revenueBars.LineStyle.Width = vg.Length(0)
	revenueBars.Color = plotutil.Color(0)
	revenueBars.Offset = -width / 2

	profitBars, err := plotter.NewBarChart(profit, width)
	if err != nil {
		return fmt.Errorf("profit bars: %w", err)
	}
	profitBars.LineStyle.Width = vg.Length(0)
	profitBars.Color = plotutil.Color(1)
	profitBars.Offset = width / 2

	p.Add(plotter.NewGrid(), revenueBars, profitBars)
	p.Legend.Add("Revenue", revenueBars)
	p.Legend.Add("Profit", profitBars)
	p.Legend.Top = true
	p.NominalX(months...)

	chartWidth := vg.Length(len(monthly))*vg.Points(40) + 2*vg.Inch
	if err := p.Save(chartWidth, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
