package types

// IngestRequest asks for one URL to go through discovery and
// reconciliation. DryRun keeps the catalog untouched.
type IngestRequest struct {
	URL    string `json:"url" binding:"required"`
	DryRun bool   `json:"dry_run"`
}

// AddTargetRequest registers a URL for periodic crawling.
type AddTargetRequest struct {
	URL           string `json:"url" binding:"required"`
	Kind          string `json:"kind"`
	IntervalHours int    `json:"interval_hours"`
}

// RunJobsRequest triggers a download pass outside the tick.
type RunJobsRequest struct {
	Limit int `json:"limit"`
}
