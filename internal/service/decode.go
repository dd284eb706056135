package service

import (
	"fmt"
	"oemcatalog/ingest/internal/domain/task"
)

func decodeFailedPage(values map[string]interface{}) (*task.FailedPageTask, error) {
	taskType, ok := values["task_type"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid task type")
	}

	taskData, ok := values["task_data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid task data")
	}

	failed, err := task.DecodeTask[*task.FailedPageTask](taskType, []byte(taskData))
	if err != nil {
		return nil, err
	}
	if failed.URL == "" {
		return nil, fmt.Errorf("failed page task has no url")
	}
	return failed, nil
}
