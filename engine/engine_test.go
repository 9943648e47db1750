package engine

import (
	"context"
	"errors"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/ugokukun/controller/state"
	"github.com/ugokukun/controller/task"
	"github.com/ugokukun/controller/transport"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func discardLogger() logwrap.Logger {
	return logwrap.New(golog.Wrap(log.New(io.Discard, "", 0)))
}

func newEngine(cameras map[string]Camera, motors map[string]Motor) *Engine {
	e := New(cameras, motors, nil, discardLogger())
	e.sleepFn = func(time.Duration) {}
	return e
}

func loadTable(t *testing.T, csv string) *task.Table {
	table, err := task.Load(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func Test_Engine_ExecuteRow(t *testing.T) {
	t.Run("dispatches a shooting parameter action to the named camera", func(t *testing.T) {
		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("SetShootingParameter", mock.Anything, "iso", "3200").Return(nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), task.Row{TaskID: "t1", Target: "cam1", Action: "iso", Param: "3200"})

		assert.NoError(t, err)
	})

	t.Run("maps white_balance and shutter_speed actions onto their parameter names", func(t *testing.T) {
		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("SetShootingParameter", mock.Anything, "whitebalance", "auto").Return(nil)
		cam.On("SetShootingParameter", mock.Anything, "shutter_speed", "1/250").Return(nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		assert.NoError(t, e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "white_balance", Param: "auto"}))
		assert.NoError(t, e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "shutter_speed", Param: "1/250"}))
	})

	t.Run("coerces colour temperature to an integer before dispatch", func(t *testing.T) {
		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("SetShootingParameter", mock.Anything, "colortemperature", 2700).Return(nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "color_temperature", Param: "2700"})

		assert.NoError(t, err)
	})

	t.Run("fires the shutter with autofocus parsed from the param cell", func(t *testing.T) {
		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("FireShutter", mock.Anything, true).Return(nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "shutter", Param: "yes"})

		assert.NoError(t, err)
	})

	t.Run("defaults the shutter to autofocus off when no param is given", func(t *testing.T) {
		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("FireShutter", mock.Anything, false).Return(nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "shutter"})

		assert.NoError(t, err)
	})

	t.Run("issues a raw get against the param as a logical path", func(t *testing.T) {
		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("Get", mock.Anything, "/deviceinformation").Return(transport.Response{StatusCode: 200}, nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "get", Param: "/deviceinformation"})

		assert.NoError(t, err)
	})

	t.Run("parses the payload cell for puts", func(t *testing.T) {
		table := loadTable(t, "task_id,wait_time,target,action,param,payload\n"+
			`t1,0,cam1,put,/shooting/settings/iso,"{""value"": ""200""}"`+"\n")

		cam := &MockCamera{}
		defer cam.AssertExpectations(t)
		cam.On("Put", mock.Anything, "/shooting/settings/iso", map[string]any{"value": "200"}).Return(transport.Response{StatusCode: 200}, nil)

		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), table.Rows()[0])

		assert.NoError(t, err)
	})

	t.Run("dispatches cw and ccw to the named motor with parsed degrees", func(t *testing.T) {
		motor := &MockMotor{}
		defer motor.AssertExpectations(t)
		motor.On("TurnRelative", mock.Anything, true, 90.0).Return(nil)
		motor.On("TurnRelative", mock.Anything, false, 45.0).Return(nil)

		e := newEngine(nil, map[string]Motor{"table1": motor})

		assert.NoError(t, e.ExecuteRow(context.Background(), task.Row{Target: "table1", Action: "cw", Param: "90"}))
		assert.NoError(t, e.ExecuteRow(context.Background(), task.Row{Target: "table1", Action: "ccw", Param: "45"}))
	})

	t.Run("dispatches speed to the named motor", func(t *testing.T) {
		motor := &MockMotor{}
		defer motor.AssertExpectations(t)
		motor.On("SetSpeed", mock.Anything, 60).Return(nil)

		e := newEngine(nil, map[string]Motor{"table1": motor})

		err := e.ExecuteRow(context.Background(), task.Row{Target: "table1", Action: "speed", Param: "60"})

		assert.NoError(t, err)
	})

	t.Run("sleep under target all is a no-op", func(t *testing.T) {
		e := newEngine(nil, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "all", Action: "sleep"})

		assert.NoError(t, err)
	})

	t.Run("rejects any other action under target all", func(t *testing.T) {
		e := newEngine(nil, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "all", Action: "shutter"})

		assert.True(t, errors.Is(err, task.ErrUnknownAction))
	})

	t.Run("rejects unknown targets", func(t *testing.T) {
		e := newEngine(nil, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "cam9", Action: "shutter"})

		assert.True(t, errors.Is(err, ErrUnknownTarget))
	})

	t.Run("rejects a motor action sent to a camera", func(t *testing.T) {
		cam := &MockCamera{}
		e := newEngine(map[string]Camera{"cam1": cam}, nil)

		err := e.ExecuteRow(context.Background(), task.Row{Target: "cam1", Action: "cw", Param: "90"})

		assert.True(t, errors.Is(err, task.ErrUnknownAction))
	})
}

const runCSV = "task_id,wait_time,target,action,param,payload\n" +
	"t1,0.01,cam1,iso,3200,\n" +
	"t2,0.01,table1,cw,90,\n" +
	"t3,0.01,cam1,shutter,,\n"

func Test_Engine_Run(t *testing.T) {
	t.Run("executes rows strictly in table order and sleeps each wait time", func(t *testing.T) {
		var order []string

		cam := &MockCamera{}
		cam.On("SetShootingParameter", mock.Anything, "iso", "3200").Run(func(mock.Arguments) { order = append(order, "iso") }).Return(nil)
		cam.On("FireShutter", mock.Anything, false).Run(func(mock.Arguments) { order = append(order, "shutter") }).Return(nil)

		motor := &MockMotor{}
		motor.On("TurnRelative", mock.Anything, true, 90.0).Run(func(mock.Arguments) { order = append(order, "cw") }).Return(nil)

		e := New(map[string]Camera{"cam1": cam}, map[string]Motor{"table1": motor}, nil, discardLogger())

		var slept time.Duration
		e.sleepFn = func(d time.Duration) { slept += d }

		err := e.Run(context.Background(), loadTable(t, runCSV))

		assert.NoError(t, err)
		assert.Equal(t, []string{"iso", "cw", "shutter"}, order)
		assert.Equal(t, 30*time.Millisecond, slept)
	})

	t.Run("dry run visits the same rows in the same order without sleeping", func(t *testing.T) {
		var order []string

		cam := &MockCamera{}
		cam.On("SetShootingParameter", mock.Anything, "iso", "3200").Run(func(mock.Arguments) { order = append(order, "iso") }).Return(nil)
		cam.On("FireShutter", mock.Anything, false).Run(func(mock.Arguments) { order = append(order, "shutter") }).Return(nil)

		motor := &MockMotor{}
		motor.On("TurnRelative", mock.Anything, true, 90.0).Run(func(mock.Arguments) { order = append(order, "cw") }).Return(nil)

		e := New(map[string]Camera{"cam1": cam}, map[string]Motor{"table1": motor}, nil, discardLogger())

		slept := false
		e.sleepFn = func(time.Duration) { slept = true }

		err := e.DryRun(context.Background(), loadTable(t, runCSV))

		assert.NoError(t, err)
		assert.Equal(t, []string{"iso", "cw", "shutter"}, order)
		assert.False(t, slept)
	})

	t.Run("halts on the first failing row and names the task in the error", func(t *testing.T) {
		cam := &MockCamera{}
		cam.On("SetShootingParameter", mock.Anything, "iso", "3200").Return(errors.New("camera offline"))

		motor := &MockMotor{}

		e := newEngine(map[string]Camera{"cam1": cam}, map[string]Motor{"table1": motor})

		err := e.Run(context.Background(), loadTable(t, runCSV))

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "t1")
		motor.AssertNotCalled(t, "TurnRelative", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publishes run and row events to the bus", func(t *testing.T) {
		bus := state.NewEventBus()
		ch := make(chan any, 16)
		bus.Subscribe(ch)

		cam := &MockCamera{}
		cam.On("FireShutter", mock.Anything, false).Return(nil)

		e := New(map[string]Camera{"cam1": cam}, nil, bus, discardLogger())
		e.sleepFn = func(time.Duration) {}

		err := e.DryRun(context.Background(), loadTable(t, "task_id,wait_time,target,action,param,payload\nt1,0,cam1,shutter,,\n"))

		assert.NoError(t, err)

		started := (<-ch).(state.RunStarted)
		assert.Equal(t, state.DryRun, started.Mode)
		assert.Equal(t, 1, started.Rows)

		row := (<-ch).(state.RowStarted)
		assert.Equal(t, "t1", row.TaskID)

		completedRow := (<-ch).(state.RowCompleted)
		assert.Equal(t, "t1", completedRow.TaskID)

		completed := (<-ch).(state.RunCompleted)
		assert.Equal(t, 1, completed.RowsExecuted)
		assert.Equal(t, started.RunID, completed.RunID)
	})

	t.Run("publishes a run failure naming the halting task", func(t *testing.T) {
		bus := state.NewEventBus()
		ch := make(chan any, 16)
		bus.Subscribe(ch)

		cam := &MockCamera{}
		cam.On("FireShutter", mock.Anything, false).Return(errors.New("boom"))

		e := New(map[string]Camera{"cam1": cam}, nil, bus, discardLogger())
		e.sleepFn = func(time.Duration) {}

		err := e.DryRun(context.Background(), loadTable(t, "task_id,wait_time,target,action,param,payload\nt1,0,cam1,shutter,,\n"))

		assert.Error(t, err)

		<-ch // RunStarted
		<-ch // RowStarted

		failed := (<-ch).(state.RunFailed)
		assert.Equal(t, "t1", failed.TaskID)
		assert.Equal(t, 0, failed.RowsExecuted)
	})
}
