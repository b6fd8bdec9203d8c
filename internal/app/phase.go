package app

// Phase is a node's position in the launch protocol.
type Phase int32

const (
	PhaseConstructed Phase = iota
	PhaseRegistering
	PhaseAwake
	PhaseThreadBootstrap
	PhaseChildrenLaunching
	PhaseStarting
	PhaseUpdating
	PhaseEnding
	PhaseChildrenJoining
	PhaseTerminating
	PhaseTerminated
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "constructed"
	case PhaseRegistering:
		return "registering"
	case PhaseAwake:
		return "awake"
	case PhaseThreadBootstrap:
		return "thread_bootstrap"
	case PhaseChildrenLaunching:
		return "children_launching"
	case PhaseStarting:
		return "starting"
	case PhaseUpdating:
		return "updating"
	case PhaseEnding:
		return "ending"
	case PhaseChildrenJoining:
		return "children_joining"
	case PhaseTerminating:
		return "terminating"
	case PhaseTerminated:
		return "terminated"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the node has left its launch.
func (p Phase) Done() bool {
	return p == PhaseTerminated || p == PhaseFailed
}
