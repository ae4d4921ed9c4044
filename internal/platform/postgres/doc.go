// Package postgres provides the PostgreSQL implementation of the task store
// interface defined in the internal/store package. It handles query
// execution and the mapping between domain entities and database records,
// using single-row conditional updates to keep lifecycle writes atomic.
package postgres
