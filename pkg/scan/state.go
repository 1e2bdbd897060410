package scan

// State is a phase of a scan run.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateFiltering
	StateWalking
	StateDispatching
	StateAwaiting
	StateAggregating
	StateDone
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateDiscovering: "discovering",
	StateFiltering:   "filtering",
	StateWalking:     "walking",
	StateDispatching: "dispatching",
	StateAwaiting:    "awaiting",
	StateAggregating: "aggregating",
	StateDone:        "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
