package models

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPartial    Status = "partial"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusReturned   Status = "returned"
)

var ValidStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusPartial:    {},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusExpired:    {},
	StatusReturned:   {},
}

// predecessors lists, for every target status, the statuses it may be entered from.
var predecessors = map[Status][]Status{
	StatusProcessing: {StatusPending, StatusPartial},
	StatusPartial:    {StatusPending, StatusProcessing},
	StatusCompleted:  {StatusPending, StatusProcessing, StatusPartial},
	StatusFailed:     {StatusPending, StatusProcessing, StatusPartial},
	StatusExpired:    {StatusPending, StatusPartial},
	StatusReturned:   {StatusCompleted},
}

// IsTerminal reports whether no regular event may move a transaction out of s.
// completed still accepts the single reversal edge to returned.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusReturned:
		return true
	}
	return false
}

// IsFailure reports whether s ends a transaction without the money moving.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusExpired
}

// CanTransition reports whether a transaction in from may move to to.
// A same-status event is not a transition.
func CanTransition(from, to Status) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

// Predecessors returns the statuses to may be entered from.
func Predecessors(to Status) []Status {
	out := make([]Status, len(predecessors[to]))
	copy(out, predecessors[to])
	return out
}

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessed  WithdrawalStatus = "processed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusReturned   WithdrawalStatus = "returned"
	WithdrawalStatusExpired    WithdrawalStatus = "expired"
	WithdrawalStatusTerminated WithdrawalStatus = "terminated"
)

// WithdrawalStatusFor maps a transaction status to the user-facing withdrawal status.
func WithdrawalStatusFor(s Status) WithdrawalStatus {
	switch s {
	case StatusCompleted:
		return WithdrawalStatusProcessed
	case StatusFailed:
		return WithdrawalStatusFailed
	case StatusExpired:
		return WithdrawalStatusExpired
	case StatusReturned:
		return WithdrawalStatusReturned
	}
	return WithdrawalStatusPending
}
