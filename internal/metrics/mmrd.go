package metrics

// MMRDMetrics holds all mmrd-specific metrics.
type MMRDMetrics struct {
	registry *Registry

	// Counters
	LeavesTotal        *Counter
	BatchesTotal       *Counter
	ProofsTotal        *Counter
	VerificationsTotal *Counter
	IngestedFilesTotal *Counter
	ErrorsTotal        *Counter

	// Gauges
	RangeSize  *Gauge
	PeakCount  *Gauge
	LeafCount  *Gauge
	ClientsNow *Gauge

	// Histograms
	AppendDuration *Histogram
	ProofDuration  *Histogram
}

// NewMMRDMetrics creates and registers all mmrd metrics.
func NewMMRDMetrics(registry *Registry) *MMRDMetrics {
	if registry == nil {
		registry = Default()
	}

	return &MMRDMetrics{
		registry: registry,

		LeavesTotal: registry.RegisterCounter(
			"mmrd_leaves_total",
			"Total number of leaves appended",
		),
		BatchesTotal: registry.RegisterCounter(
			"mmrd_batches_total",
			"Total number of non-empty append batches",
		),
		ProofsTotal: registry.RegisterCounter(
			"mmrd_proofs_total",
			"Total number of inclusion proofs generated",
		),
		VerificationsTotal: registry.RegisterCounter(
			"mmrd_verifications_total",
			"Total number of proof verifications performed",
		),
		IngestedFilesTotal: registry.RegisterCounter(
			"mmrd_ingested_files_total",
			"Total number of spool files ingested as leaves",
		),
		ErrorsTotal: registry.RegisterCounter(
			"mmrd_errors_total",
			"Total number of errors",
		),

		RangeSize: registry.RegisterGauge(
			"mmrd_range_size",
			"Number of nodes in the range",
		),
		PeakCount: registry.RegisterGauge(
			"mmrd_peak_count",
			"Number of current mountain peaks",
		),
		LeafCount: registry.RegisterGauge(
			"mmrd_leaf_count",
			"Number of leaves in the range",
		),
		ClientsNow: registry.RegisterGauge(
			"mmrd_connected_clients",
			"Number of connected control clients",
		),

		AppendDuration: registry.RegisterHistogram(
			"mmrd_append_duration_seconds",
			"Duration of append batches",
			DurationBuckets,
		),
		ProofDuration: registry.RegisterHistogram(
			"mmrd_proof_duration_seconds",
			"Duration of proof generation",
			DurationBuckets,
		),
	}
}
