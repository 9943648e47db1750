package v1

import (
	"context"
	"github.com/ugokukun/controller/ccapi"
	"github.com/ugokukun/controller/task"
)

// CameraStater exposes the diagnostic surface of a camera session.
type CameraStater interface {
	DumpState() ccapi.Snapshot
}

// MotorStater exposes the diagnostic surface of a motor session.
type MotorStater interface {
	ID() string
	SpeedRPM() int
}

// Runner executes the current task table in one of the two run modes.
type Runner interface {
	DryRun(ctx context.Context, table *task.Table) error
	Run(ctx context.Context, table *task.Table) error
}

// TableStore provides the current task table and accepts wholesale
// replacements.
type TableStore interface {
	Current() *task.Table
	Replace(*task.Table)
}
