package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/ugokukun/controller/ccapi"
	"github.com/ugokukun/controller/state"
	"github.com/ugokukun/controller/task"
	"strings"
	"time"
)

type Publisher func(ctx context.Context, topic string, payload []byte) error

type mqttError string

func (m mqttError) Error() string {
	return string(m)
}

const UnknownTopic = mqttError("unknown topic")
const UnknownRunMode = mqttError("unknown run mode")
const RunInProgress = mqttError("a run is already in progress")
const NoTableLoaded = mqttError("no task table loaded")

// CameraStater exposes the publishable state of a camera session.
type CameraStater interface {
	DumpState() ccapi.Snapshot
}

// MotorStater exposes the publishable state of a motor session.
type MotorStater interface {
	SpeedRPM() int
}

// Runner executes the current task table in one of the two run modes.
type Runner interface {
	DryRun(ctx context.Context, table *task.Table) error
	Run(ctx context.Context, table *task.Table) error
}

// TableStore provides the task table a run should execute.
type TableStore interface {
	Current() *task.Table
}

type Interface struct {
	publisher Publisher
	stop      chan bool
	busyCh    chan struct{}
	eventCh   chan any

	Cameras         map[string]CameraStater
	Motors          map[string]MotorStater
	Runner          Runner
	Tables          TableStore
	EventSubscriber state.EventSubscriber

	Logger logwrap.Logger

	PublishStateOnConnect bool
}

func EmptyPublisher(ctx context.Context, topic string, payload []byte) error {
	return nil
}

func (i *Interface) Connected(ctx context.Context, publisher Publisher) error {
	i.publisher = publisher

	if i.PublishStateOnConnect {
		i.Logger.LogInfo(ctx, "MQTT connected, publishing current state of all devices.")
		go i.publishAll()
	}

	return nil
}

func (i *Interface) Disconnected() {
	i.publisher = EmptyPublisher
}

func (i *Interface) IncomingMessage(ctx context.Context, topic string, payload []byte) error {
	topicParts := strings.Split(topic, "/")

	if len(topicParts) > 0 {
		switch topicParts[0] {
		case "runs":
			return i.incomingMessageRuns(ctx, topicParts[1:], payload)
		}
	}

	return fmt.Errorf("%w: %s", UnknownTopic, topic)
}

type startRunMessage struct {
	Mode string `json:"mode"`
}

func (i *Interface) incomingMessageRuns(ctx context.Context, topic []string, payload []byte) error {
	if len(topic) == 1 && topic[0] == "start" {
		message := startRunMessage{Mode: string(state.TimedRun)}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &message); err != nil {
				return fmt.Errorf("failed to parse run request: %w", err)
			}
		}

		return i.startRun(state.RunMode(message.Mode))
	}

	return fmt.Errorf("%w: %s", UnknownTopic, strings.Join(topic, "/"))
}

func (i *Interface) startRun(mode state.RunMode) error {
	if mode != state.DryRun && mode != state.TimedRun {
		return fmt.Errorf("%w: %s", UnknownRunMode, mode)
	}

	table := i.Tables.Current()
	if table == nil || table.Len() == 0 {
		return NoTableLoaded
	}

	select {
	case i.busyCh <- struct{}{}:
	default:
		return RunInProgress
	}

	go func() {
		defer func() {
			<-i.busyCh
		}()

		ctx := context.Background()

		var err error
		if mode == state.DryRun {
			err = i.Runner.DryRun(ctx, table)
		} else {
			err = i.Runner.Run(ctx, table)
		}

		if err != nil {
			i.Logger.LogError(ctx, "Run requested over MQTT failed.", logwrap.Err(err))
		}
	}()

	return nil
}

const MaximumPublishAllTime = 10 * time.Second

func (i *Interface) publishAll() {
	ctx, cancel := context.WithTimeout(context.Background(), MaximumPublishAllTime)
	defer cancel()

	for id, camera := range i.Cameras {
		i.publishCamera(ctx, id, camera)
	}

	for id, motor := range i.Motors {
		i.publishMotor(ctx, id, motor)
	}
}

func (i *Interface) publishCamera(ctx context.Context, id string, camera CameraStater) {
	deviceCtx := i.Logger.AddOptionsToContext(ctx, logwrap.Datum("device", id))

	payload, err := json.Marshal(camera.DumpState())
	if err != nil {
		i.Logger.LogError(deviceCtx, "Failed to marshal camera state.", logwrap.Err(err))
		return
	}

	if err := i.publisher(deviceCtx, fmt.Sprintf("devices/%s/state", id), payload); err != nil {
		i.Logger.LogError(deviceCtx, "Failed to publish camera state to mqtt.", logwrap.Err(err))
	}
}

func (i *Interface) publishMotor(ctx context.Context, id string, motor MotorStater) {
	deviceCtx := i.Logger.AddOptionsToContext(ctx, logwrap.Datum("device", id))

	payload := []byte(fmt.Sprintf("%d", motor.SpeedRPM()))

	if err := i.publisher(deviceCtx, fmt.Sprintf("devices/%s/speedRpm", id), payload); err != nil {
		i.Logger.LogError(deviceCtx, "Failed to publish motor state to mqtt.", logwrap.Err(err))
	}
}

func (i *Interface) Start() {
	i.stop = make(chan bool, 1)
	i.busyCh = make(chan struct{}, 1)
	i.publisher = EmptyPublisher

	i.eventCh = make(chan any, 100)
	i.EventSubscriber.Subscribe(i.eventCh)

	go i.handleEvents(i.eventCh)
}

func (i *Interface) Stop() {
	if i.eventCh != nil {
		i.EventSubscriber.Unsubscribe(i.eventCh)
	}

	if i.stop != nil {
		i.stop <- true
	}
}

func (i *Interface) handleEvents(ch chan any) {
	for {
		select {
		case event := <-ch:
			i.serviceUpdateOnEvent(event)
		case <-i.stop:
			return
		}
	}
}

const MaximumServiceUpdateTime = 1 * time.Second

func (i *Interface) serviceUpdateOnEvent(e any) {
	ctx, cancel := context.WithTimeout(context.Background(), MaximumServiceUpdateTime)
	defer cancel()

	switch event := e.(type) {
	case state.RunStarted:
		i.publishEvent(ctx, "runs/started", event)
	case state.RowStarted:
		i.publishEvent(ctx, "runs/row/started", event)
	case state.RowCompleted:
		i.publishEvent(ctx, "runs/row/completed", event)
	case state.RunCompleted:
		i.publishEvent(ctx, "runs/completed", event)
		go i.publishAll()
	case state.RunFailed:
		i.publishEvent(ctx, "runs/failed", event)
	}
}

func (i *Interface) publishEvent(ctx context.Context, topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		i.Logger.LogError(ctx, "Failed to marshal run event.", logwrap.Datum("topic", topic), logwrap.Err(err))
		return
	}

	if err := i.publisher(ctx, topic, payload); err != nil {
		i.Logger.LogError(ctx, "Failed to publish run event to mqtt.", logwrap.Datum("topic", topic), logwrap.Err(err))
	}
}
