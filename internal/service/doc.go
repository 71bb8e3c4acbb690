// Package service contains the application use cases: the task ordering
// engine and user registration. It coordinates domain rules (internal/domain
// and internal/domain/ranking) with persistence (internal/store).
//
// Key components:
//
// 1. TaskService:
//   - Insert appends a task at rank count+1 of its partition
//   - Update applies field patches, moving a task between partitions or to an
//     explicit rank, and recompacts every partition it touched
//   - Delete removes a task and recompacts its former partition
//   - ReorderBulk applies client-supplied ranks conditionally and reports a
//     result per item
//
// 2. Concurrency:
//   - Every mutation holds the lock of each partition it reads or writes for
//     the whole read-modify-write, acquired through a lock.Locker
//   - Each store call runs under its own timeout; expiry is retryable
//
// 3. Error Handling:
//   - Validation, ownership and not-found results are returned as sentinels
//   - Everything else is wrapped in TaskServiceError; IsRetryable reports
//     whether repeating the operation is safe
//
// The service layer depends on store interfaces, never on a specific backend.
package service
