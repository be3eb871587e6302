package relay

// Phase is the coordinator's position in one accept/relay iteration.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAccepting
	PhasePipeConnecting
	PhaseRelaying
	PhaseDraining // first pump done, waiting for the cancelled sibling
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAccepting:
		return "accepting"
	case PhasePipeConnecting:
		return "pipe_connecting"
	case PhaseRelaying:
		return "relaying"
	case PhaseDraining:
		return "draining"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}
