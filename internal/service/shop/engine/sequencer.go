// Package engine holds the pure algorithms of the catalog: import ordering,
// tree aggregation and price-history reconstruction. Nothing here touches
// storage; callers load snapshots first and hand them over.
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// SolveInsertionOrder orders a batch so that every item whose parent is in the
// same batch comes after that parent. Parents outside the batch are assumed to
// exist already. The result is the same set of items for any permutation of a
// valid batch.
func SolveInsertionOrder(items []domain.ImportItem) ([]domain.ImportItem, error) {
	byID := make(map[uuid.UUID]domain.ImportItem, len(items))
	var errs []domain.FieldError

	for i, item := range items {
		if _, dup := byID[item.ID]; dup {
			errs = append(errs, domain.FieldError{
				Field:   fmt.Sprintf("items[%d].id", i),
				Message: fmt.Sprintf("duplicate id %s", item.ID),
			})
			continue
		}
		byID[item.ID] = item
	}
	if len(errs) > 0 {
		return nil, domain.NewValidationErrors(errs)
	}

	ordered := make([]domain.ImportItem, 0, len(items))
	placed := make(map[uuid.UUID]bool, len(items))

	for _, item := range items {
		if placed[item.ID] {
			continue
		}

		// Walk up through in-batch parents, then emit root to leaf.
		chain := []domain.ImportItem{item}
		onChain := map[uuid.UUID]bool{item.ID: true}
		cur := item
		for cur.ParentID != nil {
			parent, ok := byID[*cur.ParentID]
			if !ok || placed[parent.ID] {
				break
			}
			if onChain[parent.ID] {
				return nil, domain.NewValidationError("items", fmt.Sprintf("parent cycle through %s", parent.ID))
			}
			chain = append(chain, parent)
			onChain[parent.ID] = true
			cur = parent
		}

		for i := len(chain) - 1; i >= 0; i-- {
			ordered = append(ordered, chain[i])
			placed[chain[i].ID] = true
		}
	}

	return ordered, nil
}
