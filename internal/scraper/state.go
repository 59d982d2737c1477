package scraper

// State is a phase of a scraper run.
type State int

const (
	// StateSearching opens the site and submits the query.
	StateSearching State = iota
	// StateSorting waits for results and sorts them by date.
	StateSorting
	// StateExpanding loads every result page.
	StateExpanding
	// StateExtracting turns loaded results into records.
	StateExtracting
	// StateDone is the terminal success state.
	StateDone
	// StateAborted is the terminal failure state.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "SEARCHING"
	case StateSorting:
		return "SORTING"
	case StateExpanding:
		return "EXPANDING"
	case StateExtracting:
		return "EXTRACTING"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
