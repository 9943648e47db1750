package state

import (
	"time"
)

// RunMode distinguishes a validating dry run from a timed run.
type RunMode string

const (
	DryRun   RunMode = "dry"
	TimedRun RunMode = "timed"
)

type RunStarted struct {
	RunID string    `json:"runId"`
	Mode  RunMode   `json:"mode"`
	Rows  int       `json:"rows"`
	At    time.Time `json:"at"`
}

type RowStarted struct {
	RunID  string `json:"runId"`
	Index  int    `json:"index"`
	TaskID string `json:"taskId"`
	Target string `json:"target"`
	Action string `json:"action"`
}

type RowCompleted struct {
	RunID    string        `json:"runId"`
	Index    int           `json:"index"`
	TaskID   string        `json:"taskId"`
	Duration time.Duration `json:"duration"`
}

type RunCompleted struct {
	RunID        string        `json:"runId"`
	Mode         RunMode       `json:"mode"`
	RowsExecuted int           `json:"rowsExecuted"`
	Duration     time.Duration `json:"duration"`
}

// RunFailed carries the task that halted the run; rows after it were never
// executed.
type RunFailed struct {
	RunID        string        `json:"runId"`
	Mode         RunMode       `json:"mode"`
	TaskID       string        `json:"taskId"`
	Index        int           `json:"index"`
	Error        string        `json:"error"`
	RowsExecuted int           `json:"rowsExecuted"`
	Duration     time.Duration `json:"duration"`
}
