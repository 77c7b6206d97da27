package workqueue

import "sync"

// ConcurrencyStrategy controls how tasks are allowed to start concurrently.
// The strategy tracks running tasks per kind and decides whether a new task
// of a kind can start.
type ConcurrencyStrategy interface {
	CanStart(kind TaskKind) bool
	OnStart(kind TaskKind)
	OnComplete(kind TaskKind)
}

// LaneStrategy runs up to a fixed number of tasks per kind. Generate and IO
// lanes are independent, so exports of one generator overlap generation
// of the next.
type LaneStrategy struct {
	mu      sync.Mutex
	limits  map[TaskKind]int
	running map[TaskKind]int
}

// NewLaneStrategy allows maxGenerate generator pipelines and maxIO IO tasks
// at once. Limits below one are raised to one.
func NewLaneStrategy(maxGenerate, maxIO int) *LaneStrategy {
	return &LaneStrategy{
		limits: map[TaskKind]int{
			KindGenerate: max(maxGenerate, 1),
			KindIO:       max(maxIO, 1),
		},
		running: make(map[TaskKind]int),
	}
}

// NewSerializedStrategy runs one task of each kind at a time.
func NewSerializedStrategy() *LaneStrategy {
	return NewLaneStrategy(1, 1)
}

func (s *LaneStrategy) CanStart(kind TaskKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit, ok := s.limits[kind]
	if !ok {
		limit = 1
	}
	return s.running[kind] < limit
}

func (s *LaneStrategy) OnStart(kind TaskKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[kind]++
}

func (s *LaneStrategy) OnComplete(kind TaskKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[kind] > 0 {
		s.running[kind]--
	}
}
