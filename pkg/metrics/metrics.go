package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleOperations counts trade lifecycle operations by operation and outcome
var LifecycleOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tradebook_lifecycle_operations_total",
		Help: "Total trade lifecycle operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// QueryCompiles counts filter query compilations by outcome
var QueryCompiles = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tradebook_query_compiles_total",
		Help: "Total filter query compilations by outcome",
	},
	[]string{"outcome"},
)

// ValidationViolations records the number of rule violations per validation run
var ValidationViolations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "tradebook_validation_violations",
		Help:    "Distribution of rule violations per validation run",
		Buckets: []float64{0, 1, 2, 3, 5, 8},
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradebook_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
	)

	DBInUseConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradebook_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
	)
)

func init() {
	prometheus.MustRegister(LifecycleOperations, QueryCompiles, ValidationViolations)
	prometheus.MustRegister(DBOpenConns, DBInUseConns)
}
