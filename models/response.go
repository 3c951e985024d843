package models

// ConsultResponse is the response for GET /api/v1/cnpj/:id.
type ConsultResponse struct {
	// Success mirrors the record's metadata: true only when the pipeline
	// completed and extraction ran against a real result page.
	Success bool `json:"success"`

	// Record is the structured registry record. Present on both success and
	// terminal failure (a failure record carries the error message and
	// success=false metadata); absent only for input validation failures.
	Record *RegistryRecord `json:"record,omitempty"`

	// CacheStatus indicates whether the record was served from cache.
	// Values: "hit", "miss", or empty (caching bypassed).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	Success bool            `json:"success"`
	Record  *RegistryRecord `json:"record,omitempty"`
	Timing  TimingInfo      `json:"timing"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// TimingInfo provides duration breakdowns for an operation.
type TimingInfo struct {
	// TotalMs is the wall time for the whole request.
	TotalMs int64 `json:"total_ms"`

	// ConsultMs is the time spent in the consultation pipeline
	// (session + challenge + extraction), zero on cache hits.
	ConsultMs int64 `json:"consult_ms,omitempty"`
}

// CacheStatsResponse is the response for GET /api/v1/cache/stats.
type CacheStatsResponse struct {
	Entries int    `json:"entries"`
	Dir     string `json:"dir"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
