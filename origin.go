package reflux

// Origin identifies the part of a running loop that produced a Fault.
type Origin int32

const (
	// OriginFeedback is a feedback whose event stream failed or panicked.
	OriginFeedback Origin = iota

	// OriginEffect is an effect started for a request that failed or panicked.
	// The request stays active until the projection revokes it.
	OriginEffect

	// OriginSource is an external source whose payload could not be decoded
	// or validated.
	OriginSource

	// OriginReducer is a reducer panic. Reducer faults end the loop.
	OriginReducer
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginFeedback:
		return "feedback"
	case OriginEffect:
		return "effect"
	case OriginSource:
		return "source"
	case OriginReducer:
		return "reducer"
	default:
		return "unknown"
	}
}
