package task

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

type taskError string

func (e taskError) Error() string {
	return string(e)
}

// ErrMissingHeader is wrapped with the name of the first required column
// absent from the source's header row.
const ErrMissingHeader = taskError("missing required header")

// ErrDuplicateTaskID is wrapped with the offending identifier; a table with
// duplicates is rejected wholesale.
const ErrDuplicateTaskID = taskError("task_id must be unique")

// ErrNegativeWaitTime rejects rows asking to wait for a negative duration.
const ErrNegativeWaitTime = taskError("wait_time must not be negative")

// ErrMissingPayload is returned by Row.Payload when the action needed a
// payload the row does not carry.
const ErrMissingPayload = taskError("row has no payload")

var requiredColumns = []string{"task_id", "wait_time", "target", "action", "param", "payload"}

// Row is one unit of work: a target device, an action and its parameters.
// The payload cell stays unparsed until an action asks for it.
type Row struct {
	TaskID   string
	WaitTime time.Duration
	Target   string
	Action   string
	Param    string

	rawPayload string
}

// HasParam reports whether the param cell was non-empty.
func (r Row) HasParam() bool {
	return r.Param != ""
}

// HasPayload reports whether the payload cell was non-empty.
func (r Row) HasPayload() bool {
	return r.rawPayload != ""
}

// RawPayload returns the payload cell as loaded, without parsing it.
func (r Row) RawPayload() string {
	return r.rawPayload
}

// Payload parses the row's JSON payload cell into v. Parsing is lazy; a
// malformed payload only fails the row whose action consumes it.
func (r Row) Payload(v any) error {
	if !r.HasPayload() {
		return ErrMissingPayload
	}

	if err := json.Unmarshal([]byte(r.rawPayload), v); err != nil {
		return fmt.Errorf("failed to parse payload of task '%s': %w", r.TaskID, err)
	}

	return nil
}

// Table is a validated, ordered sequence of task rows. Row order is source
// order; it is never reordered by task id. A Table is immutable once
// loaded; reloading builds a replacement.
type Table struct {
	rows []Row
}

// Rows returns the rows in execution order.
func (t *Table) Rows() []Row {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// LoadFile loads and validates a task table from a CSV file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task table '%s': %w", path, err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load task table '%s': %w", path, err)
	}

	return t, nil
}

// Load parses a header-first CSV source into a Table. The header must
// contain every required column (extra columns are ignored), task ids must
// be unique and wait times non negative; any violation rejects the whole
// table.
func Load(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, requiredColumns[0])
	}

	columns, err := indexColumns(records[0])
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	rows := make([]Row, 0, len(records)-1)

	for _, record := range records[1:] {
		row, err := parseRow(record, columns)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[row.TaskID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTaskID, row.TaskID)
		}
		seen[row.TaskID] = struct{}{}

		rows = append(rows, row)
	}

	return &Table{rows: rows}, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, required)
		}
	}

	return columns, nil
}

func parseRow(record []string, columns map[string]int) (Row, error) {
	cell := func(name string) string {
		i := columns[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	taskID := cell("task_id")

	waitSeconds, err := strconv.ParseFloat(cell("wait_time"), 64)
	if err != nil {
		return Row{}, fmt.Errorf("failed to parse wait_time of task '%s': %w", taskID, err)
	}

	if waitSeconds < 0 {
		return Row{}, fmt.Errorf("%w: task '%s'", ErrNegativeWaitTime, taskID)
	}

	return Row{
		TaskID:     taskID,
		WaitTime:   time.Duration(waitSeconds * float64(time.Second)),
		Target:     cell("target"),
		Action:     cell("action"),
		Param:      cell("param"),
		rawPayload: cell("payload"),
	}, nil
}
