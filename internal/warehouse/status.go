package warehouse

// Status is the lifecycle stage of a package inside the warehouse.
type Status string

const (
	StatusReceived        Status = "RECEIVED"
	StatusProcessing      Status = "PROCESSING"
	StatusReadyForLoading Status = "READY_FOR_LOADING"
	StatusLoaded          Status = "LOADED"
	StatusDispatched      Status = "DISPATCHED"
	StatusCancelled       Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order, terminal override last.
var Statuses = []Status{
	StatusReceived,
	StatusProcessing,
	StatusReadyForLoading,
	StatusLoaded,
	StatusDispatched,
	StatusCancelled,
}

// transitions is the closed set of allowed moves: forward along the
// lifecycle, or to CANCELLED from any non-terminal stage.
var transitions = map[Status][]Status{
	StatusReceived:        {StatusProcessing, StatusReadyForLoading, StatusLoaded, StatusDispatched, StatusCancelled},
	StatusProcessing:      {StatusReadyForLoading, StatusLoaded, StatusDispatched, StatusCancelled},
	StatusReadyForLoading: {StatusLoaded, StatusDispatched, StatusCancelled},
	StatusLoaded:          {StatusDispatched, StatusCancelled},
	StatusDispatched:      {},
	StatusCancelled:       {},
}

// CanTransition reports whether a package in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is accepted from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string { return string(s) }
