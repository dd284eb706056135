package task

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Task is anything that can be pushed onto a redis stream as task_type/task_data.
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

// DefaultTaskValue provides a common implementation for TaskValue
func DefaultTaskValue(task Task) ([]byte, error) {
	return json.Marshal(task)
}

// DecodeTask restores a task from the task_data field of a stream message.
func DecodeTask[T Task](taskType string, data []byte) (T, error) {
	var t T
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to decode %s: %w", taskType, err)
	}
	if v := reflect.ValueOf(t); !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return t, fmt.Errorf("failed to decode %s: empty payload", taskType)
	}
	if got := t.TaskType(); got != taskType {
		return t, fmt.Errorf("task type mismatch: message is %s, decoded %s", taskType, got)
	}
	return t, nil
}
