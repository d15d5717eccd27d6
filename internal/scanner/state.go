package scanner

// State is the phase of the market scan cycle.
type State int

const (
	StateIdle State = iota
	StateSessionOpen
	StateScanningClubs
	StateScanningPlayers
	StateWriteback
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionOpen:
		return "session_open"
	case StateScanningClubs:
		return "scanning_clubs"
	case StateScanningPlayers:
		return "scanning_players"
	case StateWriteback:
		return "writeback"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
