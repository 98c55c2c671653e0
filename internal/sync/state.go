package sync

// State is the phase a sync run is in. Transitions are linear:
// Init → Resolving → Scanning → Diffing → Deleting → Streaming → Draining,
// ending in Done, Failed, or Cancelled.
type State int

const (
	StateInit State = iota
	StateResolving
	StateScanning
	StateDiffing
	StateDeleting
	StateStreaming
	StateDraining
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResolving:
		return "resolving"
	case StateScanning:
		return "scanning"
	case StateDiffing:
		return "diffing"
	case StateDeleting:
		return "deleting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
