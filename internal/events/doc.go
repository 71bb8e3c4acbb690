// Package events carries notifications about committed task mutations.
//
// The task service emits a TaskChangedEvent after every successful write.
// Handlers such as the task list cache react to them without the service
// knowing they exist.
package events
