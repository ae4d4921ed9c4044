// Package task manages background work queuing, execution, and lifecycle.
// It provides the in-process work queue, the lifecycle controller that
// enforces valid status transitions with first-writer-wins terminal writes,
// and the worker pool that executes workloads without blocking HTTP request
// handling, recovering unfinished work across application restarts.
package task
