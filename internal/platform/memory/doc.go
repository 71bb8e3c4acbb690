// Package memory provides in-process implementations of the store interfaces.
// It backs the server when database.driver is "memory" and serves as the
// reference store in service tests.
package memory
