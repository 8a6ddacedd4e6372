package workqueue

import "sync"

// ConcurrencyStrategy controls how many tasks run at once in each lane.
// Provider calls and Athena queries are throttled independently: one is
// rate-limited by the LLM vendor, the other by the workgroup.
type ConcurrencyStrategy interface {
	// CanStartLLM returns true if a provider task can start now
	CanStartLLM() bool
	// CanStartQuery returns true if a query task can start now
	CanStartQuery() bool
	// OnStartLLM is called when a provider task starts
	OnStartLLM()
	// OnStartQuery is called when a query task starts
	OnStartQuery()
	// OnDoneLLM is called when a provider task finishes
	OnDoneLLM()
	// OnDoneQuery is called when a query task finishes
	OnDoneQuery()
}

// SerializedStrategy runs one provider task and one query task at a time.
// The two lanes still overlap with each other.
type SerializedStrategy struct {
	mu           sync.Mutex
	llmRunning   bool
	queryRunning bool
}

func NewSerializedStrategy() *SerializedStrategy {
	return &SerializedStrategy{}
}

func (s *SerializedStrategy) CanStartLLM() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.llmRunning
}

func (s *SerializedStrategy) CanStartQuery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.queryRunning
}

func (s *SerializedStrategy) OnStartLLM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmRunning = true
}

func (s *SerializedStrategy) OnStartQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryRunning = true
}

func (s *SerializedStrategy) OnDoneLLM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmRunning = false
}

func (s *SerializedStrategy) OnDoneQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryRunning = false
}

// ThrottledStrategy allows up to maxLLM provider tasks and maxQueries
// query tasks to run in parallel.
type ThrottledStrategy struct {
	mu         sync.Mutex
	maxLLM     int
	maxQueries int
	llmRunning int
	queries    int
}

// NewThrottledStrategy builds a strategy with the given lane limits.
// Limits below one are clamped to one.
func NewThrottledStrategy(maxLLM, maxQueries int) *ThrottledStrategy {
	return &ThrottledStrategy{
		maxLLM:     max(maxLLM, 1),
		maxQueries: max(maxQueries, 1),
	}
}

func (s *ThrottledStrategy) CanStartLLM() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmRunning < s.maxLLM
}

func (s *ThrottledStrategy) CanStartQuery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries < s.maxQueries
}

func (s *ThrottledStrategy) OnStartLLM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmRunning++
}

func (s *ThrottledStrategy) OnStartQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
}

func (s *ThrottledStrategy) OnDoneLLM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.llmRunning > 0 {
		s.llmRunning--
	}
}

func (s *ThrottledStrategy) OnDoneQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queries > 0 {
		s.queries--
	}
}
