package pipeline

import "fmt"

// Stage represents the lifecycle state of a page's generation record.
type Stage string

// Stage values persisted in the page store.
const (
	StagePending         Stage = "pending"
	StageGeneratingBrief Stage = "generating_brief"
	StageWriting         Stage = "writing"
	StageChecking        Stage = "checking"
	StageComplete        Stage = "complete"
	StageFailed          Stage = "failed"
)

// transitions is the closed set of legal stage moves. Retry and regenerate
// re-enter through pending; everything else is strictly forward.
var transitions = map[Stage][]Stage{
	StagePending:         {StageGeneratingBrief},
	StageGeneratingBrief: {StageWriting, StageFailed},
	StageWriting:         {StageChecking, StageFailed},
	StageChecking:        {StageComplete, StageFailed},
	StageComplete:        {StagePending},
	StageFailed:          {StagePending},
}

// Valid reports whether s is a known stage value.
func (s Stage) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the stage is a resting state observable by pollers.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// InFlight reports whether a worker is (or was) mid-attempt on the page.
func (s Stage) InFlight() bool {
	switch s {
	case StageGeneratingBrief, StageWriting, StageChecking:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Stage) CanTransition(next Stage) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next stage, or an error for an
// illegal move so callers fail loudly instead of corrupting a record.
func (s Stage) Transition(next Stage) (Stage, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal stage transition %q -> %q", s, next)
	}
	return next, nil
}
