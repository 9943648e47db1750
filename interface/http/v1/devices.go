package v1

import (
	"encoding/json"
	"github.com/gorilla/mux"
	"net/http"
	"sort"
)

type deviceController struct {
	cameras map[string]CameraStater
	motors  map[string]MotorStater
}

// ExportedDevice is the summary view of a managed device.
type ExportedDevice struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`

	Address  string `json:"address,omitempty"`
	SpeedRPM int    `json:"speedRpm,omitempty"`
}

func (d *deviceController) exportDevices() []ExportedDevice {
	devices := make([]ExportedDevice, 0, len(d.cameras)+len(d.motors))

	for id, camera := range d.cameras {
		snapshot := camera.DumpState()
		devices = append(devices, ExportedDevice{
			Identifier: id,
			Type:       "camera",
			Address:    snapshot.Address,
		})
	}

	for id, motor := range d.motors {
		devices = append(devices, ExportedDevice{
			Identifier: id,
			Type:       "motor",
			SpeedRPM:   motor.SpeedRPM(),
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Identifier < devices[j].Identifier
	})

	return devices
}

func (d *deviceController) listDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.exportDevices())
}

func (d *deviceController) getDevice(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for _, device := range d.exportDevices() {
		if device.Identifier == id {
			writeJSON(w, device)
			return
		}
	}

	http.NotFound(w, r)
}

func (d *deviceController) getDeviceState(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if camera, found := d.cameras[id]; found {
		writeJSON(w, camera.DumpState())
		return
	}

	if motor, found := d.motors[id]; found {
		writeJSON(w, ExportedDevice{
			Identifier: id,
			Type:       "motor",
			SpeedRPM:   motor.SpeedRPM(),
		})
		return
	}

	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}
