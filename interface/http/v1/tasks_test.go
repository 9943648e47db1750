package v1

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ugokukun/controller/task"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const tasksCSV = `task_id,wait_time,target,action,param,payload
t1,0.5,cam1,iso,400,
t2,0,all,sleep,,
`

func Test_taskController_getTable(t *testing.T) {
	t.Run("returns the rows of the current table in order", func(t *testing.T) {
		table, err := task.Load(strings.NewReader(tasksCSV))
		require.NoError(t, err)

		ts := &MockTableStore{}
		defer ts.AssertExpectations(t)
		ts.On("Current").Return(table)

		tc := taskController{tables: ts}

		req := httptest.NewRequest("GET", "/tasks", nil)
		rr := httptest.NewRecorder()

		tc.getTable(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var rows []ExportedRow
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))

		require.Len(t, rows, 2)
		assert.Equal(t, ExportedRow{TaskID: "t1", WaitTime: 0.5, Target: "cam1", Action: "iso", Param: "400"}, rows[0])
		assert.Equal(t, ExportedRow{TaskID: "t2", WaitTime: 0, Target: "all", Action: "sleep"}, rows[1])
	})

	t.Run("returns an empty list when no table is loaded", func(t *testing.T) {
		ts := &MockTableStore{}
		defer ts.AssertExpectations(t)
		ts.On("Current").Return(nil)

		tc := taskController{tables: ts}

		req := httptest.NewRequest("GET", "/tasks", nil)
		rr := httptest.NewRecorder()

		tc.getTable(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})
}

func Test_taskController_replaceTable(t *testing.T) {
	t.Run("replaces the current table with a valid upload", func(t *testing.T) {
		ts := &MockTableStore{}
		defer ts.AssertExpectations(t)
		ts.On("Replace", mock.AnythingOfType("*task.Table"))

		tc := taskController{tables: ts}

		req := httptest.NewRequest("PUT", "/tasks", strings.NewReader(tasksCSV))
		rr := httptest.NewRecorder()

		tc.replaceTable(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("rejects an invalid upload and keeps the current table", func(t *testing.T) {
		ts := &MockTableStore{}
		defer ts.AssertExpectations(t)

		tc := taskController{tables: ts}

		req := httptest.NewRequest("PUT", "/tasks", strings.NewReader("task_id,wait_time\n"))
		rr := httptest.NewRecorder()

		tc.replaceTable(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		ts.AssertNotCalled(t, "Replace", mock.Anything)
	})
}
