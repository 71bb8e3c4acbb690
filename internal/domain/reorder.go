package domain

import "fmt"

// ReorderItem is one entry of a client-driven bulk reorder. The rank is only
// applied when the task still belongs to the caller and to Category.
type ReorderItem struct {
	ID       string
	Category string
	Order    int
}

// Partition returns the partition the item claims to belong to.
func (i ReorderItem) Partition(ownerID string) Partition {
	return Partition{OwnerID: ownerID, Category: i.Category}
}

// ValidateReorderItems checks the shape of a bulk reorder request.
func ValidateReorderItems(items []ReorderItem) error {
	if len(items) == 0 {
		return NewValidationError("items", "must contain at least one task", ErrValidation)
	}
	for i, item := range items {
		if item.ID == "" {
			return NewValidationError(fmt.Sprintf("items[%d]._id", i), "is required", ErrInvalidID)
		}
		if item.Order < 1 {
			return NewValidationError(fmt.Sprintf("items[%d].order", i), "must be a positive integer", ErrInvalidOrder)
		}
	}
	return nil
}

// Reasons reported for reorder items.
const (
	ReorderApplied    = "applied"
	ReorderNotMatched = "not_matched"
)

// ReorderItemResult reports what happened to one reorder item.
type ReorderItemResult struct {
	ID       string `json:"_id"`
	Category string `json:"category"`
	Order    int    `json:"order"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason"`
}

// ReorderResult is the outcome of a bulk reorder. Repaired lists partitions
// that were not a permutation of 1..N after the write and were recompacted.
type ReorderResult struct {
	Items    []ReorderItemResult `json:"items"`
	Applied  int                 `json:"applied"`
	Skipped  int                 `json:"skipped"`
	Repaired []string            `json:"repaired,omitempty"`
}
