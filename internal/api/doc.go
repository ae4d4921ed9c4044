// Package api implements the HTTP handlers for task submission and status
// queries. Handlers stay thin: they validate input, delegate to the task
// store and work queue, and translate internal errors into sanitized HTTP
// responses.
package api
