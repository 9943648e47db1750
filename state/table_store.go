package state

import (
	"github.com/ugokukun/controller/task"
	"sync"
)

// TableStore holds the currently loaded task table. Replace swaps the whole
// table; there are no merge semantics.
type TableStore struct {
	mu    sync.RWMutex
	table *task.Table
}

func NewTableStore(t *task.Table) *TableStore {
	return &TableStore{table: t}
}

func (s *TableStore) Current() *task.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.table
}

func (s *TableStore) Replace(t *task.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.table = t
}
