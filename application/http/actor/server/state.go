package server

// State is where a connection is in its request cycle.
type State int32

const (
	StateAwaitingHead State = iota
	StateReadingBody
	StateDispatching
	StateWritingResponse
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHead:
		return "awaiting_head"
	case StateReadingBody:
		return "reading_body"
	case StateDispatching:
		return "dispatching"
	case StateWritingResponse:
		return "writing_response"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}
