// Package api adapts HTTP requests to the task and user services: it decodes
// and validates bodies, resolves the caller's identity, and maps service
// errors to status codes and safe messages.
package api
