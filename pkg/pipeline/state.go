package pipeline

// State is the batch scheduler's current phase.
type State int32

// Scheduler states.
const (
	StateIdle State = iota
	StateDraining
	StateExporting
	StateStopping
	StateStopped
)

var stateNames = [...]string{"idle", "draining", "exporting", "stopping", "stopped"}

func (s State) String() string {
	if s >= StateIdle && int(s) < len(stateNames) {
		return stateNames[s]
	}

	return "unknown"
}
