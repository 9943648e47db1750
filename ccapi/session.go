package ccapi

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/ugokukun/controller/transport"
	"net/http"
	"sync"
	"time"
)

// ErrInvalidParameter is returned when a shooting parameter name is not in
// the wire key table.
const ErrInvalidParameter = ccapiError("unknown shooting parameter")

// ErrInvalidValue is returned when a value is not a member of the cached
// ability list for its parameter. No network call is made.
const ErrInvalidValue = ccapiError("value not in ability list for parameter")

// ErrIndeterminateDST is returned when the controller's local timezone does
// not let us decide the DST flag for the camera's datetime function.
const ErrIndeterminateDST = ccapiError("local DST state is indeterminate")

// parameter name to CCAPI wire key. Fixed table; unknown names fail before
// any network traffic.
var paramKeys = map[string]string{
	"shutter_speed":    "tv",
	"aperture":         "av",
	"iso":              "iso",
	"exposure":         "exposure",
	"whitebalance":     "wb",
	"colortemperature": "colortemperature",
}

// Setting is one shooting parameter as reported by the camera: its current
// value and the enumerated set of values the camera will accept.
type Setting struct {
	Value   any   `json:"value"`
	Ability []any `json:"ability"`
}

// SessionConfig describes one camera and how to talk to it.
type SessionConfig struct {
	ID      string
	Address string // "ip:port"
	Policy  transport.Policy

	DisableAutoPowerOff bool
	SyncTime            bool
}

// Session owns one camera's connection state, endpoint catalog and cached
// settings. Construction performs the full bring up sequence; a Session is
// never observable in a partially initialised state. Calls are serialised by
// an internal mutex, the engine itself is single threaded but the HTTP
// diagnostics interface is not.
type Session struct {
	id       string
	address  string
	executor *transport.Executor
	logger   logwrap.Logger

	mu         sync.Mutex
	catalog    *Catalog
	deviceInfo map[string]any
	settings   map[string]Setting
}

// Connect brings up a camera session: root discovery, device information,
// settings load, then the optional auto power off and clock sync calls. Any
// failure aborts construction.
func Connect(ctx context.Context, cfg SessionConfig, l logwrap.Logger) (*Session, error) {
	l.AddOptionsToLogger(logwrap.Datum("camera", cfg.ID))

	s := &Session{
		id:      cfg.ID,
		address: cfg.Address,
		logger:  l,
	}

	rootURL := fmt.Sprintf("http://%s/ccapi", cfg.Address)

	// The root resource is the one URL fetched before a catalog exists.
	s.executor = transport.NewExecutor(cfg.Policy, transport.AllEndpoints, l)

	resp, err := s.executor.Do(ctx, http.MethodGet, rootURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover camera capabilities: %w", err)
	}

	var byVersion map[string][]Endpoint
	if err := resp.JSON(&byVersion); err != nil {
		return nil, fmt.Errorf("failed to parse capability list: %w", err)
	}

	s.catalog = NewCatalog(byVersion)
	s.executor.Endpoints = s.catalog
	l.LogInfo(ctx, "Camera connection established.", logwrap.Datum("versions", s.catalog.Versions()))

	if s.deviceInfo, err = s.fetchDeviceInfo(ctx); err != nil {
		return nil, err
	}

	if err := s.refreshSettings(ctx); err != nil {
		return nil, err
	}

	if cfg.DisableAutoPowerOff {
		if err := s.killAutoPowerOff(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.SyncTime {
		if err := s.syncTime(ctx, time.Now()); err != nil {
			return nil, err
		}
	}

	l.LogInfo(ctx, "Connected to camera.", logwrap.Datum("product", s.deviceInfo["productname"]), logwrap.Datum("address", s.address))

	return s, nil
}

// ID returns the device identifier the session was configured with.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) fetchDeviceInfo(ctx context.Context) (map[string]any, error) {
	url, err := s.catalog.Resolve("/deviceinformation")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device information endpoint: %w", err)
	}

	resp, err := s.executor.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device information: %w", err)
	}

	var info map[string]any
	if err := resp.JSON(&info); err != nil {
		return nil, fmt.Errorf("failed to parse device information: %w", err)
	}

	return info, nil
}

// wire shape of one settings entry; ability is either an enumerated list or,
// for colour temperature, a {min,max,step} range.
type wireSetting struct {
	Value   any             `json:"value"`
	Ability json.RawMessage `json:"ability"`
}

type abilityRange struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

func (s *Session) refreshSettings(ctx context.Context) error {
	url, err := s.catalog.Resolve("/shooting/settings")
	if err != nil {
		return fmt.Errorf("failed to resolve shooting settings endpoint: %w", err)
	}

	resp, err := s.executor.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch shooting settings: %w", err)
	}

	var wire map[string]wireSetting
	if err := resp.JSON(&wire); err != nil {
		return fmt.Errorf("failed to parse shooting settings: %w", err)
	}

	settings := make(map[string]Setting, len(wire))

	for key, ws := range wire {
		setting := Setting{Value: ws.Value}

		if len(ws.Ability) > 0 {
			if key == "colortemperature" {
				var r abilityRange
				if err := json.Unmarshal(ws.Ability, &r); err != nil {
					return fmt.Errorf("failed to parse colour temperature ability range: %w", err)
				}
				setting.Ability = enumerateRange(r)
			} else if err := json.Unmarshal(ws.Ability, &setting.Ability); err != nil {
				return fmt.Errorf("failed to parse ability list for %s: %w", key, err)
			}
		}

		settings[key] = setting
	}

	s.settings = settings

	return nil
}

// enumerateRange expands a {min,max,step} range into the explicit value list
// [min, min+step, ..., max], max included when it lands on a step boundary.
func enumerateRange(r abilityRange) []any {
	if r.Step <= 0 {
		return nil
	}

	var out []any
	for v := r.Min; v <= r.Max; v += r.Step {
		out = append(out, v)
	}

	return out
}

func (s *Session) killAutoPowerOff(ctx context.Context) error {
	url, err := s.catalog.Resolve("/functions/autopoweroff")
	if err != nil {
		return fmt.Errorf("failed to resolve auto power off endpoint: %w", err)
	}

	if _, err := s.executor.Do(ctx, http.MethodPut, url, map[string]any{"value": "disable"}); err != nil {
		return fmt.Errorf("failed to disable auto power off: %w", err)
	}

	s.logger.LogInfo(ctx, "Auto power off disabled.")

	return nil
}

func (s *Session) syncTime(ctx context.Context, now time.Time) error {
	dst, err := localDST(now)
	if err != nil {
		return err
	}

	url, err := s.catalog.Resolve("/functions/datetime")
	if err != nil {
		return fmt.Errorf("failed to resolve datetime endpoint: %w", err)
	}

	payload := map[string]any{
		"datetime": now.Format(time.RFC1123Z),
		"dst":      dst,
	}

	if _, err := s.executor.Do(ctx, http.MethodPut, url, payload); err != nil {
		return fmt.Errorf("failed to sync camera clock: %w", err)
	}

	s.logger.LogInfo(ctx, "Camera clock synchronised.", logwrap.Datum("datetime", payload["datetime"]))

	return nil
}

// localDST decides the camera's DST flag from the controller's local clock.
// A zone with no name means the platform could not tell us where we are, and
// sending a guessed flag would skew every image timestamp.
func localDST(t time.Time) (bool, error) {
	if name, _ := t.Zone(); name == "" {
		return false, ErrIndeterminateDST
	}

	return t.IsDST(), nil
}

// Get issues a GET against a logical endpoint path.
func (s *Session) Get(ctx context.Context, logicalPath string) (transport.Response, error) {
	return s.raw(ctx, http.MethodGet, logicalPath, nil)
}

// Post issues a POST with a JSON payload against a logical endpoint path.
func (s *Session) Post(ctx context.Context, logicalPath string, payload any) (transport.Response, error) {
	return s.raw(ctx, http.MethodPost, logicalPath, payload)
}

// Put issues a PUT with a JSON payload against a logical endpoint path.
func (s *Session) Put(ctx context.Context, logicalPath string, payload any) (transport.Response, error) {
	return s.raw(ctx, http.MethodPut, logicalPath, payload)
}

// Delete issues a DELETE against a logical endpoint path.
func (s *Session) Delete(ctx context.Context, logicalPath string) (transport.Response, error) {
	return s.raw(ctx, http.MethodDelete, logicalPath, nil)
}

func (s *Session) raw(ctx context.Context, method string, logicalPath string, payload any) (transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, err := s.catalog.Resolve(logicalPath)
	if err != nil {
		return transport.Response{}, fmt.Errorf("%w: %s", err, logicalPath)
	}

	return s.executor.Do(ctx, method, url, payload)
}

// SetShootingParameter validates value against the cached ability list for
// name, issues the PUT, then unconditionally re-fetches the full settings
// snapshot; the PUT's own response is not treated as authoritative.
func (s *Session) SetShootingParameter(ctx context.Context, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := paramKeys[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, name)
	}

	setting, ok := s.settings[key]
	if !ok || !abilityContains(setting.Ability, value) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidValue, name, value)
	}

	url, err := s.catalog.Resolve("/shooting/settings/" + key)
	if err != nil {
		return fmt.Errorf("failed to resolve endpoint for %s: %w", name, err)
	}

	if _, err := s.executor.Do(ctx, http.MethodPut, url, map[string]any{"value": value}); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}

	s.logger.LogInfo(ctx, "Shooting parameter set.", logwrap.Datum("parameter", name), logwrap.Datum("value", value))

	return s.refreshSettings(ctx)
}

// abilityContains compares a candidate value against cached ability entries.
// Strings compare as strings; integers compare numerically against the
// float64 values JSON decoding produces.
func abilityContains(ability []any, value any) bool {
	for _, a := range ability {
		switch v := value.(type) {
		case string:
			if av, ok := a.(string); ok && av == v {
				return true
			}
		case int:
			switch av := a.(type) {
			case int:
				if av == v {
					return true
				}
			case float64:
				if av == float64(v) {
					return true
				}
			}
		}
	}

	return false
}

// FireShutter presses the shutter button, with or without autofocus.
func (s *Session) FireShutter(ctx context.Context, autofocus bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, err := s.catalog.Resolve("/shooting/control/shutterbutton")
	if err != nil {
		return fmt.Errorf("failed to resolve shutter endpoint: %w", err)
	}

	if _, err := s.executor.Do(ctx, http.MethodPost, url, map[string]any{"af": autofocus}); err != nil {
		return fmt.Errorf("failed to fire shutter: %w", err)
	}

	s.logger.LogInfo(ctx, "Shutter fired.", logwrap.Datum("autofocus", autofocus))

	return nil
}

// Snapshot is the full serialisable state of a camera session.
type Snapshot struct {
	ID         string                `json:"id"`
	Address    string                `json:"address"`
	Catalog    map[string][]Endpoint `json:"available_api"`
	DeviceInfo map[string]any        `json:"device_info"`
	Settings   map[string]Setting    `json:"settings"`
}

// DumpState returns the session's catalog, device information and cached
// settings. Calling it twice without an intervening mutation yields
// identical snapshots.
func (s *Session) DumpState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := make(map[string]Setting, len(s.settings))
	for k, v := range s.settings {
		settings[k] = v
	}

	info := make(map[string]any, len(s.deviceInfo))
	for k, v := range s.deviceInfo {
		info[k] = v
	}

	return Snapshot{
		ID:         s.id,
		Address:    s.address,
		Catalog:    s.catalog.Export(),
		DeviceInfo: info,
		Settings:   settings,
	}
}
