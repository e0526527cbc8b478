package inference

import (
	"fmt"
	"time"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// allowed lists the forward transitions. Any non-terminal state may also move to Failed.
var allowed = map[domain.TaskState]domain.TaskState{
	domain.StateIdle:        domain.StateChunking,
	domain.StateChunking:    domain.StateDispatching,
	domain.StateDispatching: domain.StateAggregating,
	domain.StateAggregating: domain.StateDone,
}

// machine tracks one task's state and records every transition.
type machine struct {
	state   domain.TaskState
	history []domain.Transition
	now     func() time.Time
}

func newMachine(now func() time.Time) *machine {
	return &machine{state: domain.StateIdle, now: now}
}

// advance moves to the next state. It returns an error for any transition not in the table.
func (m *machine) advance(to domain.TaskState) error {
	if m.state.Terminal() {
		return fmt.Errorf("task already %s, cannot move to %s", m.state, to)
	}
	if to != domain.StateFailed && allowed[m.state] != to {
		return fmt.Errorf("invalid transition %s -> %s", m.state, to)
	}
	m.history = append(m.history, domain.Transition{From: m.state, To: to, At: m.now()})
	m.state = to
	return nil
}

// fail moves to Failed unless the task is already terminal.
func (m *machine) fail() {
	if !m.state.Terminal() {
		_ = m.advance(domain.StateFailed)
	}
}
