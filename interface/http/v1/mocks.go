package v1

import (
	"context"
	"github.com/stretchr/testify/mock"
	"github.com/ugokukun/controller/ccapi"
	"github.com/ugokukun/controller/task"
)

type MockCameraStater struct {
	mock.Mock
}

func (m *MockCameraStater) DumpState() ccapi.Snapshot {
	args := m.Called()
	return args.Get(0).(ccapi.Snapshot)
}

type MockMotorStater struct {
	mock.Mock
}

func (m *MockMotorStater) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMotorStater) SpeedRPM() int {
	args := m.Called()
	return args.Int(0)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) DryRun(ctx context.Context, table *task.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockRunner) Run(ctx context.Context, table *task.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

type MockTableStore struct {
	mock.Mock
}

func (m *MockTableStore) Current() *task.Table {
	args := m.Called()
	if t, ok := args.Get(0).(*task.Table); ok {
		return t
	}
	return nil
}

func (m *MockTableStore) Replace(t *task.Table) {
	m.Called(t)
}
