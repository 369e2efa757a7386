package memory

import (
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps everything in process. It backs tests and single-shot CLI
// runs that do not need durable state.
type Memory struct {
	caseRepo *caseRepository
	syncRun  *syncRunRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		caseRepo: newCaseRepository(),
		syncRun:  newSyncRunRepository(),
	}
}

func (m *Memory) Case() interfaces.CaseRepository {
	return m.caseRepo
}

func (m *Memory) SyncRun() interfaces.SyncRunRepository {
	return m.syncRun
}

func (m *Memory) Close() error {
	return nil
}
