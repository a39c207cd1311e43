package task

// Status describes the scheduling state of a thread.
type Status uint8

const (
	// StatusStopping is the state of a thread that has been created but never
	// queued.
	StatusStopping Status = iota

	// StatusRunning marks a runnable thread, whether it is executing or
	// waiting for its turn in a bucket.
	StatusRunning

	// StatusWaiting marks a thread blocked until someone wakes it.
	StatusWaiting

	// StatusExiting marks a thread that has finished and waits to be reaped.
	StatusExiting

	// StatusDeleting is terminal.
	StatusDeleting
)

var statusNames = [...]string{
	StatusStopping: "stopping",
	StatusRunning:  "running",
	StatusWaiting:  "waiting",
	StatusExiting:  "exiting",
	StatusDeleting: "deleting",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// validTransitions[from] is a bitmask of the statuses reachable from from.
var validTransitions = [...]uint8{
	StatusStopping: 1<<StatusRunning | 1<<StatusDeleting,
	StatusRunning:  1<<StatusWaiting | 1<<StatusExiting | 1<<StatusDeleting,
	StatusWaiting:  1 << StatusRunning,
	StatusExiting:  1 << StatusDeleting,
	StatusDeleting: 0,
}

// CanTransition reports whether a thread may move from one status to another.
func CanTransition(from, to Status) bool {
	if int(from) >= len(validTransitions) || int(to) >= len(statusNames) {
		return false
	}
	return validTransitions[from]&(1<<to) != 0
}
