package service

// State is a stage of one pipeline run.
type State int32

const (
	StateIdle State = iota
	StateExtracting
	StateDeduplicating
	StateEmbeddingInserting
	StateReady
	StateRetrieving
	StateResponding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateDeduplicating:
		return "deduplicating"
	case StateEmbeddingInserting:
		return "embedding+inserting"
	case StateReady:
		return "ready"
	case StateRetrieving:
		return "retrieving"
	case StateResponding:
		return "responding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
