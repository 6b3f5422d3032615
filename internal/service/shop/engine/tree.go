package engine

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// BuildTree materializes the subtree rooted at root from the current snapshots
// of its descendants. Descendants that cannot be reached from root through
// current parent links are ignored.
//
// Offers keep their own price and date. A category's price is the floored mean
// of every descendant offer price (nil when there are none). Its date is the
// latest of its own date and the dates of every descendant that has an offer
// beneath it, so a category is never older than a priced subcategory.
// Snapshots that are not current are ignored.
func BuildTree(root domain.Snapshot, descendants []domain.Snapshot) *domain.UnitNode {
	byParent := make(map[uuid.UUID][]domain.Snapshot)
	for _, s := range descendants {
		if s.ParentID == nil || s.ID == root.ID || !s.IsCurrent() {
			continue
		}
		byParent[*s.ParentID] = append(byParent[*s.ParentID], s)
	}
	for _, children := range byParent {
		slices.SortFunc(children, func(a, b domain.Snapshot) int {
			return compareIDs(a.ID, b.ID)
		})
	}

	b := treeBuilder{byParent: byParent, visited: make(map[uuid.UUID]bool)}
	node, _, _ := b.build(root)
	return node
}

type treeBuilder struct {
	byParent map[uuid.UUID][]domain.Snapshot
	visited  map[uuid.UUID]bool
}

// build returns the node, the offer prices beneath it (itself included) and
// the date it propagates to its parent: its own effective date when it holds
// offers, zero otherwise.
func (b *treeBuilder) build(s domain.Snapshot) (*domain.UnitNode, priceAcc, time.Time) {
	b.visited[s.ID] = true

	node := &domain.UnitNode{
		ID:       s.ID,
		Name:     s.Name,
		Type:     s.Type,
		ParentID: s.ParentID,
		Price:    s.Price,
		Date:     s.Date,
	}

	var acc priceAcc
	if s.Type != domain.UnitTypeCategory {
		if s.Price != nil {
			acc.add(*s.Price)
		}
		return node, acc, s.Date
	}

	node.Children = []*domain.UnitNode{}
	for _, child := range b.byParent[s.ID] {
		if b.visited[child.ID] {
			continue
		}
		childNode, childAcc, childDate := b.build(child)
		node.Children = append(node.Children, childNode)
		acc.merge(childAcc)
		if childDate.After(node.Date) {
			node.Date = childDate
		}
	}

	node.Price = acc.mean()
	if acc.count == 0 {
		return node, acc, time.Time{}
	}
	return node, acc, node.Date
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
