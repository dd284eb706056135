package service

import (
	"errors"
	"fmt"
	"oemcatalog/ingest/internal/domain"
)

// StageError records which pipeline step a page failed in.
type StageError struct {
	Stage domain.FailureStage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageOf(err error) domain.FailureStage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return domain.FailureStageUnknown
}
