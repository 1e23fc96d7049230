package crawler

// State is a stage of a crawl run or of one timeframe within it.
type State string

const (
	StateDiscovering       State = "discovering"
	StateRendering         State = "rendering"
	StateStabilizing       State = "stabilizing"
	StateExtracting        State = "extracting"
	StateNormalizing       State = "normalizing"
	StateBridgingSession   State = "bridging_session"
	StateExpandingChildren State = "expanding_children"
	StateDone              State = "done"
	StateFailed            State = "failed"
	StateAggregating       State = "aggregating"
	StateReported          State = "reported"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateReported
}
