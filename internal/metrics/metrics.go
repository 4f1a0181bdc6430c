// Package metrics records batch-job metrics for one report run and writes
// them in Prometheus text format for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sales-kpi-report/internal/orders"
	"sales-kpi-report/internal/rfm"
)

const namespace = "sales_kpi_report"

// Recorder holds the run metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	rowsRaw          prometheus.Gauge
	ordersLoaded     prometheus.Gauge
	duplicates       prometheus.Gauge
	customers        prometheus.Gauge
	segmentCustomers *prometheus.GaugeVec
	undefinedRatios  prometheus.Gauge
	runDuration      prometheus.Gauge
	lastSuccess      prometheus.Gauge
	runFailures      prometheus.Counter
}

// New registers all run metrics on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsRaw: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "input_rows",
			Help: "Non-blank data rows read from the input.",
		}),
		ordersLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "orders",
			Help: "Orders kept after duplicate removal.",
		}),
		duplicates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "duplicate_rows",
			Help: "Duplicate rows removed.",
		}),
		customers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "customers",
			Help: "Distinct customers scored.",
		}),
		segmentCustomers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "segment_customers",
			Help: "Customers per RFM segment.",
		}, []string{"segment"}),
		undefinedRatios: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "undefined_ratios",
			Help: "Ratios written as NaN because revenue or order count was zero.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		runFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "run_failures_total",
			Help: "Runs that ended in an error.",
		}),
	}
	r.registry.MustRegister(
		r.rowsRaw, r.ordersLoaded, r.duplicates, r.customers, r.segmentCustomers,
		r.undefinedRatios, r.runDuration, r.lastSuccess, r.runFailures,
	)
	return r
}

// ObserveLoad records loader counts.
func (r *Recorder) ObserveLoad(table *orders.Table) {
	r.rowsRaw.Set(float64(table.Stats.RawRows))
	r.ordersLoaded.Set(float64(table.Len()))
	r.duplicates.Set(float64(table.Stats.Duplicates))
}

// ObserveSegmentation records customer and segment counts. Every segment
// gets a series so dashboards see explicit zeros.
func (r *Recorder) ObserveSegmentation(result *rfm.Result) {
	r.customers.Set(float64(len(result.Customers)))
	counts := map[rfm.Segment]int{}
	for _, s := range result.Segments {
		counts[s.Segment] = s.Customers
	}
	for _, segment := range rfm.Segments() {
		r.segmentCustomers.WithLabelValues(string(segment)).Set(float64(counts[segment]))
	}
}

// ObserveUndefined records how many ratios came out NaN.
func (r *Recorder) ObserveUndefined(n int) {
	r.undefinedRatios.Set(float64(n))
}

// ObserveRun records the outcome of a run.
func (r *Recorder) ObserveRun(elapsed time.Duration, err error, now time.Time) {
	r.runDuration.Set(elapsed.Seconds())
	if err != nil {
		r.runFailures.Inc()
		return
	}
	r.lastSuccess.Set(float64(now.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
