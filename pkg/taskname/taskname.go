package taskname

const (
	// Earnings reconciliation
	ReconcileRun = "earnings:reconcile:run"
)
