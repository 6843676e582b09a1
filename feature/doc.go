// Package feature implements the persistent feature queue that drives the
// autonomous coding agent.
//
// Features live in a SQLite database (features.db) inside the project
// directory. Each feature carries a priority; the agent always works on
// the lowest-priority pending feature. Features can be skipped, which
// moves them to the end of the queue, and only the passes flag is mutable
// after creation.
package feature
