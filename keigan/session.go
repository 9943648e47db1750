package keigan

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"math"
	"sync"
	"time"
)

type keiganError string

func (e keiganError) Error() string {
	return string(e)
}

// ErrPortNotAvailable is returned when the configured serial path is not
// among the host's enumerated ports.
const ErrPortNotAvailable = keiganError("serial port not available")

// ErrConnectTimeout is returned when the vendor driver did not come up
// within the bounded connect window. Distinct from other connection
// failures so callers can tell a wedged port from a missing one.
const ErrConnectTimeout = keiganError("timed out connecting to motor")

// ErrInvalidSpeed rejects speeds of zero or below; the post-move settle
// time is derived from the speed and needs it strictly positive.
const ErrInvalidSpeed = keiganError("speed must be a positive rpm")

// DefaultBaudRate is the Keigan USB link rate.
const DefaultBaudRate = 115200

// DefaultConnectTimeout bounds how long Connect waits on the vendor driver.
const DefaultConnectTimeout = 5 * time.Second

// SessionConfig describes one motor and its initial state.
type SessionConfig struct {
	ID   string
	Port string
	Baud int

	SpeedRPM       int
	ConnectTimeout time.Duration
}

// Session owns one motor's serial connection and speed state. Calls are
// serialised by an internal mutex; the link cannot interleave commands.
type Session struct {
	id     string
	port   string
	driver Driver
	logger logwrap.Logger

	mu       sync.Mutex
	speedRPM int

	sleepFn func(time.Duration)
}

// Connect brings up a motor session: the port must enumerate, any stale
// holder of it is released best effort, the vendor driver is opened under a
// bounded timeout, then the indicator LED is zeroed, residual motion
// cleared and the initial speed set.
func Connect(ctx context.Context, cfg SessionConfig, l logwrap.Logger) (*Session, error) {
	l.AddOptionsToLogger(logwrap.Datum("motor", cfg.ID))

	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaudRate
	}

	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.SpeedRPM <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSpeed, cfg.SpeedRPM)
	}

	if ok, err := portAvailable(cfg.Port); err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPortNotAvailable, cfg.Port)
	}

	if err := ReleasePort(cfg.Port); err != nil {
		l.LogWarn(ctx, "Failed to release serial port, continuing.", logwrap.Datum("port", cfg.Port), logwrap.Err(err))
	}

	driver, err := connectDriver(cfg.Port, cfg.Baud, cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       cfg.ID,
		port:     cfg.Port,
		driver:   driver,
		logger:   l,
		speedRPM: cfg.SpeedRPM,
		sleepFn:  time.Sleep,
	}

	// LED off so it cannot bleed into the camera exposures.
	if err := driver.SetLED(0, 0, 0, 0); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to zero indicator LED: %w", err)
	}

	// the motor has no auto off; it may still be acting on an old command.
	if err := driver.DisableAction(); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to clear residual motion: %w", err)
	}

	if err := driver.SetSpeed(RPMToRadPerSec(float64(cfg.SpeedRPM))); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to set initial speed: %w", err)
	}

	if err := driver.SetCurveType(0); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to set acceleration curve: %w", err)
	}

	l.LogInfo(ctx, "Connected to motor.", logwrap.Datum("port", cfg.Port), logwrap.Datum("speedRPM", cfg.SpeedRPM))

	return s, nil
}

func connectDriver(port string, baud int, timeout time.Duration) (Driver, error) {
	type result struct {
		driver Driver
		err    error
	}

	ch := make(chan result, 1)

	go func() {
		d, err := openUSB(port, baud)
		ch <- result{driver: d, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to connect to motor: %w", r.err)
		}
		return r.driver, nil
	case <-time.After(timeout):
		// the open may complete later; close it when it does.
		go func() {
			if r := <-ch; r.err == nil {
				r.driver.Close()
			}
		}()
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, port)
	}
}

// ID returns the device identifier the session was configured with.
func (s *Session) ID() string {
	return s.id
}

// SpeedRPM returns the current rotational speed.
func (s *Session) SpeedRPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.speedRPM
}

// TurnRelative rotates by degrees. The driver's positive direction is
// counter clockwise, so the angle is negated for clockwise turns. After the
// move command returns, the session sleeps |degrees|/(speed*6) seconds of
// deliberate settling slack on top of the move itself.
func (s *Session) TurnRelative(ctx context.Context, clockwise bool, degrees float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.driver.EnableAction(); err != nil {
		return fmt.Errorf("failed to enable motion: %w", err)
	}

	angle := degrees
	if clockwise {
		angle = -angle
	}

	if err := s.driver.MoveByDist(DegToRad(angle)); err != nil {
		return fmt.Errorf("failed to issue move: %w", err)
	}

	settle := time.Duration(math.Abs(angle) / (float64(s.speedRPM) * 6) * float64(time.Second))
	s.sleepFn(settle)

	direction := "counter-clockwise"
	if clockwise {
		direction = "clockwise"
	}

	s.logger.LogInfo(ctx, "Motor turned.", logwrap.Datum("degrees", degrees), logwrap.Datum("direction", direction), logwrap.Datum("speedRPM", s.speedRPM))

	return nil
}

// SetSpeed changes the rotational speed, converting rpm to the driver's
// native unit.
func (s *Session) SetSpeed(ctx context.Context, rpm int) error {
	if rpm <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSpeed, rpm)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.driver.SetSpeed(RPMToRadPerSec(float64(rpm))); err != nil {
		return fmt.Errorf("failed to set speed: %w", err)
	}

	s.speedRPM = rpm
	s.logger.LogInfo(ctx, "Motor speed set.", logwrap.Datum("speedRPM", rpm))

	return nil
}

// Close releases the serial link. The motor needs no teardown protocol; it
// is safe to simply stop issuing commands.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.driver.Close()
}
