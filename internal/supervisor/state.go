// Package supervisor keeps a sample source connected, retrying with
// exponential backoff while the producer keeps running.
package supervisor

// State is where a supervised link sits in its reconnect cycle.
type State int

const (
	StateCreated    State = iota // no Check yet
	StateConnecting              // a bounded connect attempt is running
	StateConnected               // the adapter answers queries
	StateBackoff                 // down, waiting for the next attempt
	StateStopped                 // supervision ended
)

var stateNames = [...]string{
	StateCreated:    "created",
	StateConnecting: "connecting",
	StateConnected:  "connected",
	StateBackoff:    "backoff",
	StateStopped:    "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsActive reports whether the link is up or being brought back.
func (s State) IsActive() bool {
	return s > StateCreated && s < StateStopped
}

// IsTerminal reports whether supervision has ended.
func (s State) IsTerminal() bool {
	return s == StateStopped
}
