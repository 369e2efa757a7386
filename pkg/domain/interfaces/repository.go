package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Case() CaseRepository
	SyncRun() SyncRunRepository

	Close() error
}
