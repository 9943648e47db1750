package engine

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/shimmeringbee/logwrap"
	"github.com/ugokukun/controller/state"
	"github.com/ugokukun/controller/task"
	"github.com/ugokukun/controller/transport"
	"strconv"
	"time"
)

type engineError string

func (e engineError) Error() string {
	return string(e)
}

// ErrUnknownTarget is wrapped with a target that is neither "all" nor a
// known camera or motor id.
const ErrUnknownTarget = engineError("unknown target")

// Camera is the slice of a camera session the engine drives.
type Camera interface {
	Get(ctx context.Context, logicalPath string) (transport.Response, error)
	Post(ctx context.Context, logicalPath string, payload any) (transport.Response, error)
	Put(ctx context.Context, logicalPath string, payload any) (transport.Response, error)
	Delete(ctx context.Context, logicalPath string) (transport.Response, error)
	SetShootingParameter(ctx context.Context, name string, value any) error
	FireShutter(ctx context.Context, autofocus bool) error
}

// Motor is the slice of a motor session the engine drives.
type Motor interface {
	TurnRelative(ctx context.Context, clockwise bool, degrees float64) error
	SetSpeed(ctx context.Context, rpm int) error
}

// Engine resolves task rows to device sessions and executes them strictly
// in table order, one at a time. The first unhandled error halts the run.
type Engine struct {
	cameras map[string]Camera
	motors  map[string]Motor
	events  state.EventPublisher
	logger  logwrap.Logger

	sleepFn func(time.Duration)
}

func New(cameras map[string]Camera, motors map[string]Motor, events state.EventPublisher, l logwrap.Logger) *Engine {
	if events == nil {
		events = state.NullEventPublisher
	}

	return &Engine{
		cameras: cameras,
		motors:  motors,
		events:  events,
		logger:  l,
		sleepFn: time.Sleep,
	}
}

// DryRun executes every row immediately, ignoring configured delays. It
// validates the whole table end to end without waiting.
func (e *Engine) DryRun(ctx context.Context, table *task.Table) error {
	return e.run(ctx, table, state.DryRun)
}

// Run sleeps each row's wait time before executing it.
func (e *Engine) Run(ctx context.Context, table *task.Table) error {
	return e.run(ctx, table, state.TimedRun)
}

func (e *Engine) run(ctx context.Context, table *task.Table, mode state.RunMode) error {
	runID := uuid.New().String()
	started := time.Now()

	runCtx := e.logger.AddOptionsToContext(ctx, logwrap.Datum("run", runID))

	e.logger.LogInfo(runCtx, "Run starting.", logwrap.Datum("mode", string(mode)), logwrap.Datum("rows", table.Len()))
	e.events.Publish(state.RunStarted{RunID: runID, Mode: mode, Rows: table.Len(), At: started})

	for index, row := range table.Rows() {
		if mode == state.TimedRun {
			e.sleepFn(row.WaitTime)
		}

		e.logger.LogInfo(runCtx, "Executing task.", logwrap.Datum("taskId", row.TaskID), logwrap.Datum("target", row.Target), logwrap.Datum("action", row.Action))
		e.events.Publish(state.RowStarted{RunID: runID, Index: index, TaskID: row.TaskID, Target: row.Target, Action: row.Action})

		rowStarted := time.Now()

		if err := e.ExecuteRow(runCtx, row); err != nil {
			e.logger.LogError(runCtx, "Task failed, halting run.", logwrap.Datum("taskId", row.TaskID), logwrap.Err(err))
			e.events.Publish(state.RunFailed{
				RunID:        runID,
				Mode:         mode,
				TaskID:       row.TaskID,
				Index:        index,
				Error:        err.Error(),
				RowsExecuted: index,
				Duration:     time.Since(started),
			})

			return fmt.Errorf("task '%s' failed: %w", row.TaskID, err)
		}

		e.events.Publish(state.RowCompleted{RunID: runID, Index: index, TaskID: row.TaskID, Duration: time.Since(rowStarted)})
	}

	e.logger.LogInfo(runCtx, "Run complete.", logwrap.Datum("rows", table.Len()))
	e.events.Publish(state.RunCompleted{RunID: runID, Mode: mode, RowsExecuted: table.Len(), Duration: time.Since(started)})

	return nil
}

// ExecuteRow resolves one row's target and action and performs it. Unknown
// targets and actions are hard errors.
func (e *Engine) ExecuteRow(ctx context.Context, row task.Row) error {
	if row.Target == "all" {
		return e.executeAll(ctx, row)
	}

	if camera, ok := e.cameras[row.Target]; ok {
		return e.executeCamera(ctx, camera, row)
	}

	if motor, ok := e.motors[row.Target]; ok {
		return e.executeMotor(ctx, motor, row)
	}

	return fmt.Errorf("%w: %s", ErrUnknownTarget, row.Target)
}

func (e *Engine) executeAll(_ context.Context, row task.Row) error {
	action, err := task.ParseAllAction(row.Action)
	if err != nil {
		return err
	}

	switch action {
	case task.AllSleep:
		// the caller applies the row's wait time; nothing to do here.
		return nil
	}

	return fmt.Errorf("%w for target 'all': %s", task.ErrUnknownAction, row.Action)
}

func (e *Engine) executeCamera(ctx context.Context, camera Camera, row task.Row) error {
	action, err := task.ParseCameraAction(row.Action)
	if err != nil {
		return err
	}

	switch action {
	case task.CameraGet:
		_, err := camera.Get(ctx, row.Param)
		return err
	case task.CameraPost:
		var payload map[string]any
		if err := row.Payload(&payload); err != nil {
			return err
		}
		_, err := camera.Post(ctx, row.Param, payload)
		return err
	case task.CameraPut:
		var payload map[string]any
		if err := row.Payload(&payload); err != nil {
			return err
		}
		_, err := camera.Put(ctx, row.Param, payload)
		return err
	case task.CameraDelete:
		_, err := camera.Delete(ctx, row.Param)
		return err
	case task.CameraShutter:
		autofocus := false
		if row.HasParam() {
			if autofocus, err = task.ParseBool(row.Param); err != nil {
				return err
			}
		}
		return camera.FireShutter(ctx, autofocus)
	case task.CameraAperture:
		return camera.SetShootingParameter(ctx, "aperture", row.Param)
	case task.CameraExposure:
		return camera.SetShootingParameter(ctx, "exposure", row.Param)
	case task.CameraISO:
		return camera.SetShootingParameter(ctx, "iso", row.Param)
	case task.CameraWhiteBalance:
		return camera.SetShootingParameter(ctx, "whitebalance", row.Param)
	case task.CameraShutterSpeed:
		return camera.SetShootingParameter(ctx, "shutter_speed", row.Param)
	case task.CameraColorTemperature:
		value, err := strconv.Atoi(row.Param)
		if err != nil {
			return fmt.Errorf("failed to parse colour temperature '%s': %w", row.Param, err)
		}
		return camera.SetShootingParameter(ctx, "colortemperature", value)
	}

	return fmt.Errorf("%w for camera target: %s", task.ErrUnknownAction, row.Action)
}

func (e *Engine) executeMotor(ctx context.Context, motor Motor, row task.Row) error {
	action, err := task.ParseMotorAction(row.Action)
	if err != nil {
		return err
	}

	switch action {
	case task.MotorClockwise, task.MotorCounterClockwise:
		degrees, err := strconv.Atoi(row.Param)
		if err != nil {
			return fmt.Errorf("failed to parse degrees '%s': %w", row.Param, err)
		}
		return motor.TurnRelative(ctx, action == task.MotorClockwise, float64(degrees))
	case task.MotorSpeed:
		rpm, err := strconv.Atoi(row.Param)
		if err != nil {
			return fmt.Errorf("failed to parse rpm '%s': %w", row.Param, err)
		}
		return motor.SetSpeed(ctx, rpm)
	}

	return fmt.Errorf("%w for motor target: %s", task.ErrUnknownAction, row.Action)
}
