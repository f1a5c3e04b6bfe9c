// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the pipeline's core logic, so the same handlers run against Postgres
// or SQLite without change.
package store
