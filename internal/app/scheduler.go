package app

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs room timers. Rooms never read the wall clock directly, so tests
// can drive them with a ManualScheduler.
type Scheduler interface {
	// Every calls fn every d until the returned stop func is called.
	Every(d time.Duration, fn func()) (stop func())
	// After calls fn once after d unless cancel is called first.
	After(d time.Duration, fn func()) (cancel func())
}

type realScheduler struct{}

// NewScheduler returns a Scheduler backed by time.Ticker and time.AfterFunc.
func NewScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (realScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// ManualScheduler is a Scheduler whose clock only moves on Advance.
// Tasks fire synchronously on the goroutine calling Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks map[int]*manualTask
}

type manualTask struct {
	id    int
	due   time.Duration
	every time.Duration
	fn    func()
}

// NewManualScheduler is test-only for deterministic room timers.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[int]*manualTask)}
}

func (s *ManualScheduler) Every(d time.Duration, fn func()) func() {
	return s.add(d, d, fn)
}

func (s *ManualScheduler) After(d time.Duration, fn func()) func() {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) add(d, every time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.tasks[id] = &manualTask{id: id, due: s.now + d, every: every, fn: fn}
	return func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	}
}

// Advance moves the clock forward by d and fires every task that falls due,
// in due order.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		task := s.nextDueLocked(target)
		if task == nil {
			break
		}
		s.now = task.due
		if task.every > 0 {
			task.due += task.every
		} else {
			delete(s.tasks, task.id)
		}
		fn := task.fn
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// Pending reports how many tasks are scheduled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *ManualScheduler) nextDueLocked(target time.Duration) *manualTask {
	due := make([]*manualTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.due <= target {
			due = append(due, task)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})
	return due[0]
}
