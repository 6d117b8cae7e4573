package pipeline

// State is the phase of a run. A finished run reports StateClosed after a
// clean end or StateFailed after a terminal record; the sink is closed in both.
type State int

const (
	StateValidating State = iota
	StateGenerating
	StateSegmenting
	StateEmitting
	StateFailed
	StateClosed
)

var stateNames = [...]string{"validating", "generating", "segmenting", "emitting", "failed", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
