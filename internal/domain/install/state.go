package install

// State is a step of the installation state machine.
//
//	CHECK -> (INSTALLED | NEEDS_FETCH) -> FETCHING -> VERIFYING
//	      -> (VALID -> EXTRACTING -> DONE) | (INVALID -> FAILED)
type State int

const (
	// StateCheck probes the local installation.
	StateCheck State = iota
	// StateInstalled means the expected version is already in place.
	StateInstalled
	// StateNeedsFetch means the installation is absent or stale.
	StateNeedsFetch
	// StateFetching downloads the release archive.
	StateFetching
	// StateVerifying compares the archive digest with the pinned one.
	StateVerifying
	// StateValid means the digest matched.
	StateValid
	// StateInvalid means the digest did not match.
	StateInvalid
	// StateExtracting unpacks and moves the archive into place.
	StateExtracting
	// StateDone means the installation finished.
	StateDone
	// StateFailed means the run stopped on an error.
	StateFailed
)

//nolint:gochecknoglobals // Lookup table for State.String.
var stateNames = map[State]string{
	StateCheck:      "CHECK",
	StateInstalled:  "INSTALLED",
	StateNeedsFetch: "NEEDS_FETCH",
	StateFetching:   "FETCHING",
	StateVerifying:  "VERIFYING",
	StateValid:      "VALID",
	StateInvalid:    "INVALID",
	StateExtracting: "EXTRACTING",
	StateDone:       "DONE",
	StateFailed:     "FAILED",
}

// String returns the upper-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return s == StateInstalled || s == StateDone || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Any non-terminal state may fail.
func (s State) CanTransition(next State) bool {
	if next == StateFailed {
		return !s.Terminal()
	}

	switch s {
	case StateCheck:
		return next == StateInstalled || next == StateNeedsFetch
	case StateNeedsFetch:
		return next == StateFetching
	case StateFetching:
		return next == StateVerifying
	case StateVerifying:
		return next == StateValid || next == StateInvalid
	case StateValid:
		return next == StateExtracting
	case StateExtracting:
		return next == StateDone
	default:
		return false
	}
}
