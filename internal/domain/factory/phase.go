package factory

// AgentPhase is the agent's lifecycle stage. Preparing → Closing, never back.
type AgentPhase uint8

const (
	AgentPreparing AgentPhase = iota // producing ingredient packs
	AgentClosing                     // all orders fulfilled; factory closing
)

func (p AgentPhase) String() string {
	switch p {
	case AgentPreparing:
		return "preparing"
	case AgentClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// WatcherPhase is the observation stage of one ingredient watcher.
type WatcherPhase uint8

const (
	WatcherWaitingIngredient WatcherPhase = iota // blocked on ingredientReady[i]
	WatcherNotifying                             // running the matcher
	WatcherClosed                                // terminal
)

func (p WatcherPhase) String() string {
	switch p {
	case WatcherWaitingIngredient:
		return "waiting_ingredient"
	case WatcherNotifying:
		return "notifying"
	case WatcherClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SmokerPhase is the lifecycle stage of one smoker.
type SmokerPhase uint8

const (
	SmokerWaitingPair SmokerPhase = iota // blocked on pairReady[k]
	SmokerRolling
	SmokerSmoking
	SmokerClosed // terminal
)

func (p SmokerPhase) String() string {
	switch p {
	case SmokerWaitingPair:
		return "waiting_pair"
	case SmokerRolling:
		return "rolling"
	case SmokerSmoking:
		return "smoking"
	case SmokerClosed:
		return "closed"
	default:
		return "unknown"
	}
}
