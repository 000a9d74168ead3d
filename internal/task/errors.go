package task

import "errors"

// Queue and worker errors.
var (
	// ErrTaskNotFound indicates the task ID is not in the store.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoTaskToClaim indicates no claimable task is available. This is the
	// normal idle case, not a failure.
	ErrNoTaskToClaim = errors.New("no task to claim")

	// ErrTaskNotRunning indicates a completion or failure was reported for a
	// task that is not in the running state, usually because its lock
	// expired and it was reclaimed.
	ErrTaskNotRunning = errors.New("task is not running")

	// ErrHandlerNotFound indicates a claimed task has no registered handler.
	ErrHandlerNotFound = errors.New("no handler registered for task")

	// ErrNoHandlers indicates the worker was started without any handlers.
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrUnknownQueue indicates a binding names a queue outside the fixed
	// queue set.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrUnboundTask indicates a task name has no queue binding in the
	// registry.
	ErrUnboundTask = errors.New("task name not bound to a queue")

	// ErrAlreadyBound indicates a task name was bound twice.
	ErrAlreadyBound = errors.New("task name already bound")

	// ErrInvalidSchedule indicates a periodic schedule entry is malformed,
	// for example an expiry window not shorter than its interval.
	ErrInvalidSchedule = errors.New("invalid schedule entry")
)
