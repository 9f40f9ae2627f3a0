package pipeline

import "fmt"

// State is a stage of a pipeline run.
type State int32

const (
	StateInit State = iota
	StateLoadingCheckpoint
	StateSkipping
	StateProcessing
	StateCheckpointing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLoadingCheckpoint:
		return "LOADING_CHECKPOINT"
	case StateSkipping:
		return "SKIPPING"
	case StateProcessing:
		return "PROCESSING"
	case StateCheckpointing:
		return "CHECKPOINTING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
