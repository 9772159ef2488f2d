// Package metrics provides Prometheus collectors for storage backend and
// snapshot cache operations.
package metrics

// Storage operation label values
const (
	OpCreateTables = "create_tables"
	OpAddRow       = "add_row"
	OpAddData      = "add_data"
	OpGetRow       = "get_row"
	OpGetData      = "get_data"
	OpAddGraph     = "add_graph"
	OpGetGraph     = "get_graph"
	OpListGraphs   = "list_graphs"
	OpLoadNetlist  = "load_netlist"
	OpFingerprint  = "fingerprint"
)

// Status label values
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
)

// Connection pool states
const (
	PoolInUse   = "in_use"
	PoolIdle    = "idle"
	PoolMaxOpen = "max_open"
)

// Snapshot cache tiers and results
const (
	TierMemory = "memory"
	TierDisk   = "disk"

	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Histogram bucket configuration
const (
	// BucketStart1ms is the starting bucket for 1ms histograms
	BucketStart1ms = 0.001
	// BucketStart1KB is the starting bucket for byte size histograms
	BucketStart1KB = 1024.0
	// BucketFactor2 is the common exponential growth factor
	BucketFactor2 = 2
	// BucketFactor4 is used for wide size ranges
	BucketFactor4 = 4
	// BucketCount15 covers 1ms to ~16s
	BucketCount15 = 15
	// BucketCount12 covers 1KB to ~4GB with factor 4
	BucketCount12 = 12
)
