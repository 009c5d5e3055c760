package lifecycle

import "sync"

// Phase is a step in the worker lifecycle.
type Phase string

const (
	PhaseParsed     Phase = "parsed"
	PhaseInstalling Phase = "installing"
	PhaseInstalled  Phase = "installed"
	PhaseActivating Phase = "activating"
	PhaseActivated  Phase = "activated"
	PhaseRedundant  Phase = "redundant"
)

// State is the mutable worker state. The version never changes after
// construction; everything else is guarded by a mutex.
type State struct {
	version string

	mu          sync.RWMutex
	phase       Phase
	skipWaiting bool
	controlling bool
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Version     string `json:"version"`
	Phase       Phase  `json:"phase"`
	SkipWaiting bool   `json:"skip_waiting"`
	Controlling bool   `json:"controlling"`
}

// NewState returns the state of a freshly parsed worker.
func NewState(version string) *State {
	return &State{version: version, phase: PhaseParsed}
}

// Version returns the current cache generation name.
func (s *State) Version() string {
	return s.version
}

// Phase returns the lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SkipWaitingRequested reports whether promotion was requested.
func (s *State) SkipWaitingRequested() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipWaiting
}

// Controlling reports whether the worker has claimed its clients.
func (s *State) Controlling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controlling
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Version:     s.version,
		Phase:       s.phase,
		SkipWaiting: s.skipWaiting,
		Controlling: s.controlling,
	}
}

func (s *State) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *State) requestSkipWaiting() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipWaiting = true
	return s.phase
}

func (s *State) activated() {
	s.mu.Lock()
	s.phase = PhaseActivated
	s.controlling = true
	s.mu.Unlock()
}
