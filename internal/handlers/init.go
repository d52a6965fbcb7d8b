package handlers

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"herald/pkg/logging"
)

var (
	db     *sql.DB
	logger logging.Logger
)

// HeraldMetrics holds all Prometheus metrics for Herald
type HeraldMetrics struct {
	PostsProcessed *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	DBQueries      *prometheus.CounterVec
	DBDuration     *prometheus.HistogramVec
	DBConnections  *prometheus.GaugeVec
}

// Init initializes the handlers with database and logger
func Init(database *sql.DB, log logging.Logger) {
	db = database
	logger = log
}
