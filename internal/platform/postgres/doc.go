// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package.
// It handles query execution, transaction scoping for batched rank writes,
// mapping between domain entities and rows, and the embedded goose schema
// migrations.
package postgres
