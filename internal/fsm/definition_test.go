package fsm

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/librescoot/librefsm"
)

type recordingActions struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingActions) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recordingActions) EnterModeSelect(c *librefsm.Context) error {
	r.record("enter mode-select from " + string(c.FromState))
	return nil
}

func (r *recordingActions) EnterRunning(c *librefsm.Context) error {
	r.record("enter running")
	return nil
}

func (r *recordingActions) ExitRunning(c *librefsm.Context) error {
	r.record("exit running")
	return nil
}

func newMachine(t *testing.T) (*librefsm.Machine, *recordingActions) {
	t.Helper()
	actions := &recordingActions{}
	machine, err := NewDefinition(actions).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := machine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return machine, actions
}

func send(t *testing.T, m *librefsm.Machine, ev librefsm.EventID) {
	t.Helper()
	if err := m.SendSync(librefsm.Event{ID: ev}); err != nil {
		t.Fatalf("SendSync(%s): %v", ev, err)
	}
}

func TestLifecycle(t *testing.T) {
	m, actions := newMachine(t)
	if m.CurrentState() != StateInit {
		t.Fatalf("initial state = %s", m.CurrentState())
	}

	send(t, m, EvCalibrate)
	send(t, m, EvCalibrationDone)
	if m.CurrentState() != StateModeSelect {
		t.Fatalf("after calibration = %s", m.CurrentState())
	}

	send(t, m, EvRunAuto)
	if m.CurrentState() != StateRunningAuto {
		t.Fatalf("after run-auto = %s", m.CurrentState())
	}
	send(t, m, EvRunDone)
	if m.CurrentState() != StateModeSelect {
		t.Fatalf("after run-done = %s", m.CurrentState())
	}

	send(t, m, EvRunManual)
	if m.CurrentState() != StateRunningManual {
		t.Fatalf("after run-manual = %s", m.CurrentState())
	}

	want := []string{
		"enter mode-select from calibrating",
		"enter running",
		"exit running",
		"enter mode-select from running",
		"enter running",
	}
	if len(actions.events) != len(want) {
		t.Fatalf("actions = %q, want %q", actions.events, want)
	}
	for i := range want {
		// the run-done source may be reported as the parent or the substate
		if !strings.HasPrefix(actions.events[i], want[i]) {
			t.Errorf("action %d = %q, want %q", i, actions.events[i], want[i])
		}
	}
}

func TestRunRequiresModeSelect(t *testing.T) {
	m, _ := newMachine(t)
	_ = m.SendSync(librefsm.Event{ID: EvRunManual})
	if m.CurrentState() != StateInit {
		t.Errorf("run-manual from init moved the machine to %s", m.CurrentState())
	}
}
