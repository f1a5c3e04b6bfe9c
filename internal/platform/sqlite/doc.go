// Package sqlite provides SQLite implementations of the task queue store and
// the recording registry. It is the single-node backend: one file, WAL
// journaling, and immediate write transactions so concurrent dispatchers in
// the same process never claim the same task.
package sqlite
