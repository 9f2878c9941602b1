package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
)

// TaskFn advances a task's work. It is invoked with a nil event when the
// scheduler executes the task, and with each cluster event while the task is
// monitoring. The callback runs on the cluster executor.
type TaskFn func(t *Task, ev *k8api.Event)

// Task is the unit of executable work bound to a component. Tasks live in
// the flat root-owned task list and carry their own state machine.
type Task struct {
	id        string
	name      string
	component *Component
	state     TaskState
	deps      []*Task
	fn        TaskFn

	pollTimer     *time.Timer
	deadlineTimer *time.Timer

	log zerolog.Logger
}

func newTask(c *Component, name string, fn TaskFn) *Task {
	return &Task{
		id:        uuid.New().String(),
		name:      name,
		component: c,
		state:     TaskPre,
		fn:        fn,
		log:       telemetry.WithTask(c.log, name),
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Component returns the owning component.
func (t *Task) Component() *Component { return t.component }

// State returns the current task state.
func (t *Task) State() TaskState { return t.state }

// Mode returns the owning component's mode.
func (t *Task) Mode() Mode { return t.component.mode }

// Dependencies returns the task's dependency list.
func (t *Task) Dependencies() []*Task { return t.deps }

// AddDependency adds an edge to another task; duplicates are ignored.
func (t *Task) AddDependency(dep *Task) {
	if dep == nil || dep == t {
		return
	}
	for _, d := range t.deps {
		if d == dep {
			return
		}
	}
	t.deps = append(t.deps, dep)
}

// addAllDependencies collects the transitive dependency closure into out.
func (t *Task) addAllDependencies(out map[*Task]bool) {
	for _, dep := range t.deps {
		if !out[dep] {
			out[dep] = true
			dep.addAllDependencies(out)
		}
	}
}

// SetState commits a state transition. When schedule is set a change
// re-schedules the root task loop.
func (t *Task) SetState(state TaskState, schedule bool) {
	changed := t.state != state
	if changed {
		t.log.Trace().
			Stringer("from", t.state).
			Stringer("to", state).
			Msg("task state")
	}
	t.state = state

	if changed && state == TaskExecuting {
		t.component.startElapsedTimer()
		t.component.cluster.metrics.TaskExecuted(string(t.component.Kind), t.component.mode.String())
	}

	if changed && state == TaskWaiting {
		t.armDeadline()
	}

	if state.IsTerminal() {
		t.stopTimers()
		if changed {
			t.component.cluster.publishTaskEvent(t)
		}
	}

	if changed && state == TaskDone {
		t.log.Debug().Msg("task done")
	}

	if changed && schedule {
		t.component.scheduleRunTasks()
	}
}

// Evaluate advances the pre/blocked part of the state machine. Returns true
// when the state changed.
func (t *Task) Evaluate() bool {
	changed := false

	if t.state == TaskPre {
		changed = true
		t.state = TaskBlocked
	}

	if t.state == TaskBlocked {
		// A task stays blocked while its component waits on a
		// component-level dependency, and gives up when that
		// dependency can never complete.
		t.component.Evaluate()
		if t.component.HasFailedDependency() {
			t.SetState(TaskDependencyFailed, false)
			return true
		}
		if t.component.IsBlockedOnDependency() {
			return changed
		}

		blocked := false
		for _, dep := range t.deps {
			if dep.state != TaskDone {
				blocked = true
				t.log.Trace().
					Str("dependency", dep.name).
					Stringer("dependency_state", dep.state).
					Msg("task blocked on dependency")
			}

			if dep.state >= TaskAborted {
				t.SetState(TaskDependencyFailed, false)
				return true
			}
		}

		if !blocked {
			t.SetState(TaskReady, false)
			t.component.Evaluate()
			changed = true
		}
	}

	return changed
}

// Execute dispatches the task's work. Only meaningful in TaskReady; the
// callback performs the READY to EXECUTING/WAITING transitions itself.
func (t *Task) Execute() {
	t.fn(t, nil)
}

// OnEvent feeds one cluster event to the task callback and reports whether
// the task state changed.
func (t *Task) OnEvent(ev *k8api.Event) bool {
	before := t.state
	t.fn(t, ev)
	return t.state != before
}

// IsDone reports whether the task reached the success terminal.
func (t *Task) IsDone() bool { return t.state == TaskDone }

// SchedulePoll arms the readiness poll timer. The timer fires once after the
// configured interval and probes the live object through the component's
// driver; the probe result either finishes the task or re-arms the poll.
// Unsupported probes stop polling.
func (t *Task) SchedulePoll() {
	exec := t.component.cluster.exec
	exec.Post(func() {
		if t.pollTimer != nil || t.state.IsTerminal() {
			return
		}
		t.pollTimer = exec.PostDelayed(t.component.cluster.cfg.PollInterval, func() {
			t.pollTimer = nil
			if t.state.IsTerminal() {
				return
			}
			if !t.component.Probe(t.onProbe) {
				t.log.Debug().Msg("probes not available")
			}
		})
	})
}

// onProbe maps a probe result onto the task state machine. Runs on the
// executor.
func (t *Task) onProbe(state ObjectState) {
	if t.state.IsTerminal() {
		return
	}

	if t.Mode() == ModeRemove {
		switch state {
		case ObjectDontExist, ObjectDone:
			t.SetState(TaskDone, false)
			t.component.scheduleRunTasks()
		case ObjectFailed:
			t.SetState(TaskFailed, false)
			t.component.scheduleRunTasks()
		default:
			t.SchedulePoll()
		}
		return
	}

	switch state {
	case ObjectReady, ObjectDone:
		t.SetState(TaskDone, false)
		t.component.scheduleRunTasks()
	case ObjectFailed:
		t.SetState(TaskFailed, false)
		t.component.scheduleRunTasks()
	case ObjectInit, ObjectDontExist:
		t.SchedulePoll()
	}
}

// armDeadline starts the waiting deadline, when configured. A task that
// outlives it without reaching a terminal state is failed so the root future
// always resolves.
func (t *Task) armDeadline() {
	timeout := t.component.cluster.cfg.TaskTimeout
	if timeout <= 0 || t.deadlineTimer != nil {
		return
	}
	t.deadlineTimer = t.component.cluster.exec.PostDelayed(timeout, func() {
		t.deadlineTimer = nil
		if t.state.IsTerminal() {
			return
		}
		t.log.Warn().Dur("timeout", timeout).Msg("task deadline exceeded")
		t.SetState(TaskFailed, true)
	})
}

func (t *Task) stopTimers() {
	if t.pollTimer != nil {
		t.pollTimer.Stop()
		t.pollTimer = nil
	}
	if t.deadlineTimer != nil {
		t.deadlineTimer.Stop()
		t.deadlineTimer = nil
	}
}
