package a2a

import "time"

// transitions is the allowed task state graph. Terminal states and
// TaskStateUnknown have no outgoing edges.
var transitions = map[TaskState][]TaskState{
	TaskStateSubmitted:     {TaskStateWorking, TaskStateCanceled},
	TaskStateWorking:       {TaskStateWorking, TaskStateInputRequired, TaskStateCompleted, TaskStateFailed, TaskStateCanceled},
	TaskStateInputRequired: {TaskStateWorking, TaskStateCanceled},
}

// IsTerminal reports whether no further transition is permitted from s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known states.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateUnknown:
		return true
	}
	return false
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to TaskState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves t to state, recording msg as the status message. On an
// illegal edge t is left unchanged and an InvalidStateTransition error is
// returned.
func (t *Task) Transition(state TaskState, msg *Message, now time.Time) error {
	if !CanTransition(t.Status.State, state) {
		return ErrInvalidStateTransition(t.ID, t.Status.State, state)
	}
	t.Status = TaskStatus{State: state, Message: msg, Timestamp: now}
	return nil
}

// IsFinalStatus reports whether a status update with this state closes the
// event stream for the current request: terminal states and InputRequired.
func IsFinalStatus(s TaskState) bool {
	return s.IsTerminal() || s == TaskStateInputRequired
}
