package platform

// stateStore abstracts where the simulated OS keeps its state.
// Concurrency is managed by the caller (Simulator.mu), so stores
// do not need to be safe for concurrent use.
type stateStore interface {
	// Load returns the stored state, or nil if nothing was saved yet.
	Load() (*osState, error)

	// Save replaces the stored state.
	Save(st *osState) error
}
