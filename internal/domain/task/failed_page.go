package task

import "oemcatalog/ingest/internal/domain"

type FailedPageTask struct {
	URL        string              `json:"url"`         // Leaf page that failed
	RunID      string              `json:"run_id"`      // Run that recorded the failure
	Stage      domain.FailureStage `json:"stage"`       // fetch, extract or merge
	Error      string              `json:"error"`       // Error message from the failure
	RetryCount int                 `json:"retry_count"` // Number of retry runs that already failed on this page
}

func (t *FailedPageTask) TaskType() string {
	return "FailedPageTask"
}

func (t *FailedPageTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
