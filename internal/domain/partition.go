package domain

import "fmt"

// Partition is the (owner, category) pair that scopes rank contiguity. Two
// tasks share a partition only when both components match exactly.
type Partition struct {
	OwnerID  string
	Category string
}

// PartitionOf derives the partition of a task. It is never persisted.
func PartitionOf(t *Task) Partition {
	return Partition{OwnerID: t.OwnerID, Category: t.Category}
}

// Key returns an unambiguous string form of the partition, suitable for map
// and lock keys. Length-prefixing the owner keeps ("a:b","c") and ("a","b:c")
// apart.
func (p Partition) Key() string {
	return fmt.Sprintf("%d:%s:%s", len(p.OwnerID), p.OwnerID, p.Category)
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return fmt.Sprintf("(%s, %s)", p.OwnerID, p.Category)
}
