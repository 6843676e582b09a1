// Package featureapi exposes the feature store over a local REST API and
// provides the typed client used by agent tools and progress tracking.
//
// The server binds to loopback only. Agents running inside the project
// reach it with plain HTTP, which keeps the tool surface language-agnostic
// without exposing the database file itself.
//
// Endpoints:
//
//	GET    /health                  database connectivity check
//	GET    /features                paginated list (limit capped at 5)
//	GET    /features/next           highest-priority pending feature
//	GET    /features/stats          passing/total counts
//	GET    /features/all-passing    uncapped summaries for progress tracking
//	GET    /features/{id}           single feature
//	POST   /features                create one feature
//	POST   /features/bulk           create many features in queue order
//	PATCH  /features/{id}           update pass status
//	POST   /features/{id}/skip      move a pending feature to the end
//	DELETE /features/{id}           remove a feature
package featureapi
