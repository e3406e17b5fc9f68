// Package metrics instruments the migration engine: run outcomes, committed
// upgrade steps, ledger compare-and-set conflicts, the current schema version,
// and the backfill work-item lifecycle. Metrics register on the default
// Prometheus registry; Server optionally exposes them for deployments that do
// not already scrape one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunsTotal tracks migration runs by outcome (success, failed, conflict).
var RunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_runs_total",
		Help: "Total migration runs by outcome",
	},
	[]string{"dialect", "outcome"},
)

// StepsAppliedTotal tracks the total number of upgrade steps committed.
var StepsAppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_steps_applied_total",
		Help: "Total upgrade steps committed",
	},
	[]string{"dialect"},
)

// VersionConflictsTotal tracks compare-and-set failures on the version ledger.
var VersionConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_version_conflicts_total",
		Help: "Total version ledger compare-and-set conflicts",
	},
	[]string{"dialect"},
)

// CurrentSchemaVersion tracks the schema version after the most recent run.
var CurrentSchemaVersion = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "schema_migrator_current_schema_version",
		Help: "Schema version after the most recent run",
	},
	[]string{"dialect"},
)

// WorkItemsEnqueuedTotal tracks backfill work items durably recorded.
var WorkItemsEnqueuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_work_items_enqueued_total",
		Help: "Total backfill work items recorded",
	},
	[]string{"work_table"},
)

// WorkItemsClaimedTotal tracks work items claimed by backfill workers.
var WorkItemsClaimedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_work_items_claimed_total",
		Help: "Total backfill work items claimed by workers",
	},
	[]string{"work_table"},
)

// WorkItemsCompletedTotal tracks work items whose backfill finished.
var WorkItemsCompletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_work_items_completed_total",
		Help: "Total backfill work items completed",
	},
	[]string{"work_table"},
)

// WorkItemErrorsTotal tracks handler failures during backfill execution.
var WorkItemErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schema_migrator_work_item_errors_total",
		Help: "Total backfill handler failures",
	},
	[]string{"work_table"},
)
