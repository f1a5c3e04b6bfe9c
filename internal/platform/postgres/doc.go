// Package postgres provides PostgreSQL implementations of the task queue
// store and the recording registry. It is the multi-process backend: claims
// use SELECT ... FOR UPDATE SKIP LOCKED, so any number of dispatchers in any
// number of processes can share one queue.
package postgres
