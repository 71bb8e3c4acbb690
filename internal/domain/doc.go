// Package domain contains the core business entities of the task tracker:
// tasks, the owner/category partitions that scope their ranks, users, and
// the typed inputs accepted by mutating operations. It is independent of any
// specific storage engine or delivery mechanism.
package domain
