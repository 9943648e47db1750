package v1

import (
	"github.com/gorilla/mux"
	"github.com/ugokukun/controller/interface/http/auth"
	"github.com/ugokukun/controller/state"
	"github.com/shimmeringbee/logwrap"
	"net/http"
)

func ConstructRouter(cameras map[string]CameraStater, motors map[string]MotorStater, runner Runner, tables TableStore, l logwrap.Logger, ap auth.AuthenticationProvider, eventbus state.EventSubscriber) http.Handler {
	protected := mux.NewRouter()

	dc := deviceController{
		cameras: cameras,
		motors:  motors,
	}

	tc := taskController{
		tables: tables,
	}

	rc := runController{
		runner: runner,
		tables: tables,
		logger: l,
	}

	wc := websocketController{
		eventbus: eventbus,
		logger:   l,
	}

	protected.HandleFunc("/devices", dc.listDevices).Methods("GET")
	protected.HandleFunc("/devices/{identifier}", dc.getDevice).Methods("GET")
	protected.HandleFunc("/devices/{identifier}/state", dc.getDeviceState).Methods("GET")

	protected.HandleFunc("/tasks", tc.getTable).Methods("GET")
	protected.HandleFunc("/tasks", tc.replaceTable).Methods("PUT")

	protected.HandleFunc("/runs", rc.startRun).Methods("POST")

	protected.HandleFunc("/websocket", wc.serveWebsocket).Methods("GET")

	apiRoot := mux.NewRouter()
	apiRoot.Handle("/auth/type", authenticationType(ap)).Methods("GET")
	apiRoot.Handle("/auth/check", ap.AuthenticationMiddleware(http.HandlerFunc(authenticationCheck))).Methods("GET")
	apiRoot.PathPrefix("/").Handler(ap.AuthenticationMiddleware(protected))

	return apiRoot
}

func authenticationType(ap auth.AuthenticationProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ap.AuthenticationType())
	})
}
