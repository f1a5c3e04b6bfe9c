// Package task manages background job queuing, dispatch, and lifecycle.
//
// Tasks are persisted by a TaskStore before Enqueue returns, so work survives
// process restarts. A Dispatcher claims the oldest pending task atomically,
// runs the Handler registered for its type and records the outcome. Status
// only ever moves forward: pending, processing, then completed or failed.
// Work abandoned by a crashed or stopped worker is failed and, optionally,
// re-enqueued as a fresh task, which keeps execution at-least-once.
package task
