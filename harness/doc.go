// Package harness runs the autonomous coding loop for a project: it opens
// the feature store, serves the feature API, and drives agent sessions
// until every feature passes or the iteration budget runs out.
//
// Each iteration runs one session. When the project has no features yet,
// the session is an initializer that reads the project specification and
// populates the feature queue; otherwise it is a coding session that works
// the queue. Progress is tracked between sessions and reported through an
// optional webhook.
package harness
