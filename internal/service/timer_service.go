package service

import (
	"sync"
	"time"
)

// TimerStage identifies the phase of the two-stage auto-close schedule.
type TimerStage int

const (
	// StageWarn fires after the configured idle delay and posts a warning.
	StageWarn TimerStage = iota
	// StageGrace fires after the fixed grace period and closes the ticket.
	StageGrace
)

// TimerRegistry owns every pending auto-close timer, keyed by ticket id.
// Both stages of a ticket's schedule live in one cancellation record, so
// cancelling a ticket always stops whichever stage is pending. At most one
// timer per stage exists per ticket.
type TimerRegistry struct {
	mu      sync.Mutex
	clock   Clock
	pending map[string]*timerRecord
}

type timerRecord struct {
	stages map[TimerStage]Timer
}

// NewTimerRegistry builds an empty registry on the given clock.
func NewTimerRegistry(clock Clock) *TimerRegistry {
	return &TimerRegistry{clock: clock, pending: make(map[string]*timerRecord)}
}

// Schedule arms a timer for the ticket at the given stage, replacing any
// timer already armed for that stage. The callback runs on the clock's timer
// goroutine after d elapses; the registry entry for the stage is cleared
// immediately before the callback runs.
func (t *TimerRegistry) Schedule(ticketID string, stage TimerStage, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.pending[ticketID]
	if !ok {
		record = &timerRecord{stages: make(map[TimerStage]Timer)}
		t.pending[ticketID] = record
	}
	if existing, ok := record.stages[stage]; ok {
		existing.Stop()
	}

	record.stages[stage] = t.clock.AfterFunc(d, func() {
		t.clearStage(ticketID, stage)
		fn()
	})
}

// Cancel stops and discards every pending timer for the ticket, whichever
// stage each is in. Cancelling an unknown ticket is a no-op.
func (t *TimerRegistry) Cancel(ticketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.pending[ticketID]
	if !ok {
		return
	}
	for _, timer := range record.stages {
		timer.Stop()
	}
	delete(t.pending, ticketID)
}

// Pending reports whether any timer is armed for the ticket.
func (t *TimerRegistry) Pending(ticketID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.pending[ticketID]
	return ok && len(record.stages) > 0
}

// Len returns the number of tickets with at least one armed timer.
func (t *TimerRegistry) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels every pending timer. Used at shutdown.
func (t *TimerRegistry) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, record := range t.pending {
		for _, timer := range record.stages {
			timer.Stop()
		}
	}
	t.pending = make(map[string]*timerRecord)
}

func (t *TimerRegistry) clearStage(ticketID string, stage TimerStage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.pending[ticketID]
	if !ok {
		return
	}
	delete(record.stages, stage)
	if len(record.stages) == 0 {
		delete(t.pending, ticketID)
	}
}
