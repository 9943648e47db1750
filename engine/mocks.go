package engine

import (
	"context"
	"github.com/stretchr/testify/mock"
	"github.com/ugokukun/controller/transport"
)

type MockCamera struct {
	mock.Mock
}

func (m *MockCamera) Get(ctx context.Context, logicalPath string) (transport.Response, error) {
	args := m.Called(ctx, logicalPath)
	return args.Get(0).(transport.Response), args.Error(1)
}

func (m *MockCamera) Post(ctx context.Context, logicalPath string, payload any) (transport.Response, error) {
	args := m.Called(ctx, logicalPath, payload)
	return args.Get(0).(transport.Response), args.Error(1)
}

func (m *MockCamera) Put(ctx context.Context, logicalPath string, payload any) (transport.Response, error) {
	args := m.Called(ctx, logicalPath, payload)
	return args.Get(0).(transport.Response), args.Error(1)
}

func (m *MockCamera) Delete(ctx context.Context, logicalPath string) (transport.Response, error) {
	args := m.Called(ctx, logicalPath)
	return args.Get(0).(transport.Response), args.Error(1)
}

func (m *MockCamera) SetShootingParameter(ctx context.Context, name string, value any) error {
	args := m.Called(ctx, name, value)
	return args.Error(0)
}

func (m *MockCamera) FireShutter(ctx context.Context, autofocus bool) error {
	args := m.Called(ctx, autofocus)
	return args.Error(0)
}

type MockMotor struct {
	mock.Mock
}

func (m *MockMotor) TurnRelative(ctx context.Context, clockwise bool, degrees float64) error {
	args := m.Called(ctx, clockwise, degrees)
	return args.Error(0)
}

func (m *MockMotor) SetSpeed(ctx context.Context, rpm int) error {
	args := m.Called(ctx, rpm)
	return args.Error(0)
}
