package entities

import (
	"errors"
	"time"
)

// TaskType categorizes a routine task for icon/grouping purposes.
type TaskType string

const (
	TaskTypeHygiene TaskType = "hygiene"
	TaskTypeFood    TaskType = "food"
	TaskTypeWater   TaskType = "water"
	TaskTypeMeds    TaskType = "meds"
	TaskTypeComfort TaskType = "comfort"
	TaskTypeMedical TaskType = "medical"
	TaskTypeGeneral TaskType = "general"
)

// Task is one item on the daily routine list.
type Task struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Text      string    `json:"text" bson:"text"`
	Completed bool      `json:"completed" bson:"completed"`
	Type      TaskType  `json:"type" bson:"type"`
	Time      string    `json:"time,omitempty" bson:"time,omitempty"` // "HH:MM" scheduled slot
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewTask creates an uncompleted task of the given type.
func NewTask(text string, taskType TaskType) *Task {
	if taskType == "" {
		taskType = TaskTypeGeneral
	}
	return &Task{
		Text:      text,
		Completed: false,
		Type:      taskType,
		CreatedAt: time.Now(),
	}
}

// Toggle flips the completion state and reports whether the task
// transitioned to completed (which is what earns a star).
func (t *Task) Toggle() bool {
	t.Completed = !t.Completed
	return t.Completed
}

// Validate validates the task data.
func (t *Task) Validate() error {
	if t.Text == "" {
		return errors.New("text is required")
	}
	switch t.Type {
	case TaskTypeHygiene, TaskTypeFood, TaskTypeWater, TaskTypeMeds,
		TaskTypeComfort, TaskTypeMedical, TaskTypeGeneral:
		return nil
	default:
		return errors.New("invalid task type")
	}
}
