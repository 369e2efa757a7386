package types

// RunState is the phase of a reconciliation run for one source
type RunState int32

const (
	RunStateIdle RunState = iota
	RunStateFetching
	RunStateMappingAndUpserting
)

func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "IDLE"
	case RunStateFetching:
		return "FETCHING"
	case RunStateMappingAndUpserting:
		return "MAPPING_AND_UPSERTING"
	default:
		return "UNKNOWN"
	}
}

// RunOutcome is the terminal result of a reconciliation run
type RunOutcome string

const (
	RunOutcomeSucceeded RunOutcome = "succeeded"
	RunOutcomeFailed    RunOutcome = "failed"
)
