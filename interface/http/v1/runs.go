package v1

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shimmeringbee/logwrap"
	"github.com/ugokukun/controller/state"
	"github.com/ugokukun/controller/task"
	"io"
	"net/http"
	"sync"
)

type runController struct {
	runner Runner
	tables TableStore
	logger logwrap.Logger

	mu   sync.Mutex
	busy bool
	wg   sync.WaitGroup
}

type startRunRequest struct {
	Mode string `json:"mode"`
}

type startRunResponse struct {
	Mode string `json:"mode"`
	Rows int    `json:"rows"`
}

// startRun launches the current task table in the requested mode. Runs are
// asynchronous; progress is published on the event bus. Only one run may be
// in flight at a time.
func (c *runController) startRun(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	request := startRunRequest{Mode: string(state.TimedRun)}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &request); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	mode := state.RunMode(request.Mode)
	if mode != state.DryRun && mode != state.TimedRun {
		http.Error(w, "mode must be 'dry' or 'timed'", http.StatusBadRequest)
		return
	}

	table := c.tables.Current()
	if table == nil || table.Len() == 0 {
		http.Error(w, "no task table loaded", http.StatusConflict)
		return
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	}
	c.busy = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.execute(mode, table)

	response, err := json.Marshal(startRunResponse{Mode: string(mode), Rows: table.Len()})
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write(response)
}

func (c *runController) execute(mode state.RunMode, table *task.Table) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	ctx := c.logger.AddOptionsToContext(context.Background(), logwrap.Datum("request", uuid.New().String()))

	var err error
	if mode == state.DryRun {
		err = c.runner.DryRun(ctx, table)
	} else {
		err = c.runner.Run(ctx, table)
	}

	if err != nil {
		c.logger.LogError(ctx, "Run failed.", logwrap.Err(err))
	}
}
