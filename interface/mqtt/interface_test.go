package mqtt

import (
	"context"
	"encoding/json"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ugokukun/controller/ccapi"
	"github.com/ugokukun/controller/state"
	"github.com/ugokukun/controller/task"
	"strings"
	"testing"
	"time"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

type mockCamera struct {
	mock.Mock
}

func (m *mockCamera) DumpState() ccapi.Snapshot {
	args := m.Called()
	return args.Get(0).(ccapi.Snapshot)
}

type mockMotor struct {
	mock.Mock
}

func (m *mockMotor) SpeedRPM() int {
	args := m.Called()
	return args.Int(0)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) DryRun(ctx context.Context, table *task.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *mockRunner) Run(ctx context.Context, table *task.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

type mockTableStore struct {
	mock.Mock
}

func (m *mockTableStore) Current() *task.Table {
	args := m.Called()
	if t, ok := args.Get(0).(*task.Table); ok {
		return t
	}
	return nil
}

func loadedTable(t *testing.T) *task.Table {
	table, err := task.Load(strings.NewReader("task_id,wait_time,target,action,param,payload\nt1,0,all,sleep,,\n"))
	require.NoError(t, err)
	return table
}

func TestInterface_Connected(t *testing.T) {
	t.Run("publisher is set correctly", func(t *testing.T) {
		i := Interface{Logger: logwrap.New(discard.Discard())}

		m := &MockPublisher{}
		defer m.AssertExpectations(t)

		err := i.Connected(context.Background(), m.Publish)
		assert.NoError(t, err)

		assert.NotNil(t, i.publisher)
	})

	t.Run("publishes device state if set to publish on connect", func(t *testing.T) {
		snapshot := ccapi.Snapshot{ID: "cam1", Address: "192.0.2.1:8080"}

		mc := &mockCamera{}
		defer mc.AssertExpectations(t)
		mc.On("DumpState").Return(snapshot)

		mm := &mockMotor{}
		defer mm.AssertExpectations(t)
		mm.On("SpeedRPM").Return(30)

		i := Interface{
			Cameras:               map[string]CameraStater{"cam1": mc},
			Motors:                map[string]MotorStater{"base": mm},
			Logger:                logwrap.New(discard.Discard()),
			PublishStateOnConnect: true,
		}

		expectedState, err := json.Marshal(snapshot)
		require.NoError(t, err)

		m := &MockPublisher{}
		defer m.AssertExpectations(t)
		m.On("Publish", mock.Anything, "devices/cam1/state", expectedState).Return(nil)
		m.On("Publish", mock.Anything, "devices/base/speedRpm", []byte("30")).Return(nil)

		err = i.Connected(context.Background(), m.Publish)
		assert.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
	})
}

func TestInterface_IncomingMessage(t *testing.T) {
	t.Run("starts a run from a runs/start message", func(t *testing.T) {
		table := loadedTable(t)

		ts := &mockTableStore{}
		defer ts.AssertExpectations(t)
		ts.On("Current").Return(table)

		mr := &mockRunner{}
		defer mr.AssertExpectations(t)
		mr.On("DryRun", mock.Anything, table).Return(nil)

		i := Interface{Runner: mr, Tables: ts, EventSubscriber: state.NewEventBus(), Logger: logwrap.New(discard.Discard())}
		i.Start()
		defer i.Stop()

		err := i.IncomingMessage(context.Background(), "runs/start", []byte(`{"mode":"dry"}`))
		assert.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
	})

	t.Run("rejects a run request with an unknown mode", func(t *testing.T) {
		i := Interface{EventSubscriber: state.NewEventBus(), Logger: logwrap.New(discard.Discard())}
		i.Start()
		defer i.Stop()

		err := i.IncomingMessage(context.Background(), "runs/start", []byte(`{"mode":"fast"}`))
		assert.ErrorIs(t, err, UnknownRunMode)
	})

	t.Run("rejects a run request with no table loaded", func(t *testing.T) {
		ts := &mockTableStore{}
		defer ts.AssertExpectations(t)
		ts.On("Current").Return(nil)

		i := Interface{Tables: ts, EventSubscriber: state.NewEventBus(), Logger: logwrap.New(discard.Discard())}
		i.Start()
		defer i.Stop()

		err := i.IncomingMessage(context.Background(), "runs/start", []byte(`{"mode":"timed"}`))
		assert.ErrorIs(t, err, NoTableLoaded)
	})

	t.Run("rejects a second run while one is in flight", func(t *testing.T) {
		table := loadedTable(t)

		ts := &mockTableStore{}
		defer ts.AssertExpectations(t)
		ts.On("Current").Return(table)

		release := make(chan struct{})

		mr := &mockRunner{}
		defer mr.AssertExpectations(t)
		mr.On("Run", mock.Anything, table).Run(func(args mock.Arguments) {
			<-release
		}).Return(nil)

		i := Interface{Runner: mr, Tables: ts, EventSubscriber: state.NewEventBus(), Logger: logwrap.New(discard.Discard())}
		i.Start()
		defer i.Stop()

		assert.NoError(t, i.IncomingMessage(context.Background(), "runs/start", nil))
		assert.ErrorIs(t, i.IncomingMessage(context.Background(), "runs/start", nil), RunInProgress)

		close(release)
		time.Sleep(50 * time.Millisecond)
	})

	t.Run("errors on an unknown topic", func(t *testing.T) {
		i := Interface{Logger: logwrap.New(discard.Discard())}

		err := i.IncomingMessage(context.Background(), "unknown/topic", nil)
		assert.ErrorIs(t, err, UnknownTopic)
	})
}

type mockEventSubscriber struct {
	mock.Mock
}

func (m *mockEventSubscriber) Subscribe(ch chan any) {
	m.Called(ch)
}

func (m *mockEventSubscriber) Unsubscribe(ch chan any) {
	m.Called(ch)
}

func TestInterface_Stop(t *testing.T) {
	t.Run("unsubscribes its event channel from the bus", func(t *testing.T) {
		es := &mockEventSubscriber{}
		defer es.AssertExpectations(t)

		var subscribed chan any
		es.On("Subscribe", mock.Anything).Run(func(args mock.Arguments) {
			subscribed = args.Get(0).(chan any)
		})
		es.On("Unsubscribe", mock.Anything).Run(func(args mock.Arguments) {
			assert.Equal(t, subscribed, args.Get(0).(chan any))
		})

		i := Interface{EventSubscriber: es, Logger: logwrap.New(discard.Discard())}
		i.Start()
		i.Stop()
	})
}

func TestInterface_serviceUpdateOnEvent(t *testing.T) {
	t.Run("publishes run events from the event bus to their topics", func(t *testing.T) {
		eb := state.NewEventBus()

		i := Interface{EventSubscriber: eb, Logger: logwrap.New(discard.Discard())}
		i.Start()
		defer i.Stop()

		event := state.RowStarted{RunID: "run-1", TaskID: "t1", Target: "cam1", Action: "iso"}
		expected, err := json.Marshal(event)
		require.NoError(t, err)

		m := &MockPublisher{}
		defer m.AssertExpectations(t)
		m.On("Publish", mock.Anything, "runs/row/started", expected).Return(nil)

		require.NoError(t, i.Connected(context.Background(), m.Publish))

		eb.Publish(event)

		time.Sleep(50 * time.Millisecond)
	})
}
