package session

import "time"

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// Status is the connection state exposed to callers. Exactly one state
// is active at a time and only the Manager may change it. The fields
// beyond State are meaningful only for the state they belong to:
// ElapsedSeconds while connecting, ConnectedAt once connected, Message
// and LastAttemptAt after a failure.
type Status struct {
	State          State      `json:"state"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	Message        string     `json:"message,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
}

func disconnected() Status {
	return Status{State: StateDisconnected}
}

func connecting(elapsed int) Status {
	return Status{State: StateConnecting, ElapsedSeconds: elapsed}
}

func connected(at time.Time) Status {
	return Status{State: StateConnected, ConnectedAt: &at}
}

func failed(message string, at time.Time) Status {
	return Status{State: StateFailed, Message: message, LastAttemptAt: &at}
}
