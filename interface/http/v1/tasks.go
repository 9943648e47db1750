package v1

import (
	"github.com/ugokukun/controller/task"
	"net/http"
)

type taskController struct {
	tables TableStore
}

// ExportedRow mirrors one task table row over the wire. Wait times are
// reported in seconds to match the CSV source.
type ExportedRow struct {
	TaskID   string  `json:"taskId"`
	WaitTime float64 `json:"waitTime"`
	Target   string  `json:"target"`
	Action   string  `json:"action"`
	Param    string  `json:"param,omitempty"`
	Payload  string  `json:"payload,omitempty"`
}

func (t *taskController) getTable(w http.ResponseWriter, r *http.Request) {
	table := t.tables.Current()
	if table == nil {
		writeJSON(w, []ExportedRow{})
		return
	}

	rows := make([]ExportedRow, 0, table.Len())
	for _, row := range table.Rows() {
		rows = append(rows, ExportedRow{
			TaskID:   row.TaskID,
			WaitTime: row.WaitTime.Seconds(),
			Target:   row.Target,
			Action:   row.Action,
			Param:    row.Param,
			Payload:  row.RawPayload(),
		})
	}

	writeJSON(w, rows)
}

func (t *taskController) replaceTable(w http.ResponseWriter, r *http.Request) {
	table, err := task.Load(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t.tables.Replace(table)
	w.WriteHeader(http.StatusNoContent)
}
