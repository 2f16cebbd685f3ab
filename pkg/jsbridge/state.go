package jsbridge

// State is the lifecycle of a bridge channel.
type State int

const (
	StateUninitialized State = iota
	StateBootstrappingInjected
	StateReady
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrappingInjected:
		return "bootstrapping-injected"
	case StateReady:
		return "ready"
	case StateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}
