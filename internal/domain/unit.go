package domain

import (
	"time"

	"github.com/google/uuid"
)

// Unit is the stable identity of a node: its id, its immutable type and its
// current parent.
type Unit struct {
	ID       uuid.UUID
	Type     UnitType
	ParentID *uuid.UUID
}

// Snapshot is the state of a unit as imported at Date. ValidTo is the date of
// the next snapshot of the same unit, nil while the snapshot is current.
type Snapshot struct {
	ID       uuid.UUID
	Date     time.Time
	Type     UnitType
	ParentID *uuid.UUID
	Name     string
	Price    *int64
	ValidTo  *time.Time
}

// IsCurrent reports whether no later snapshot of the unit exists.
func (s Snapshot) IsCurrent() bool { return s.ValidTo == nil }

// Covers reports whether the snapshot was in effect at t.
func (s Snapshot) Covers(t time.Time) bool {
	if t.Before(s.Date) {
		return false
	}
	return s.ValidTo == nil || t.Before(*s.ValidTo)
}

// ImportItem is a single record of an import batch.
type ImportItem struct {
	ID       uuid.UUID
	Type     UnitType
	ParentID *uuid.UUID
	Name     string
	Price    *int64
}

// Unit returns the identity part of the item.
func (i ImportItem) Unit() Unit {
	return Unit{ID: i.ID, Type: i.Type, ParentID: i.ParentID}
}

// ImportBatch is an atomic set of items sharing one batch date.
type ImportBatch struct {
	Items      []ImportItem
	UpdateDate time.Time
}

// UnitNode is the tree projection of a unit. Children is nil for offers and
// a non-nil (possibly empty) slice for categories.
type UnitNode struct {
	ID       uuid.UUID
	Name     string
	Type     UnitType
	ParentID *uuid.UUID
	Price    *int64
	Date     time.Time
	Children []*UnitNode
}

// UnitStatistic is the flat projection used by sales and history queries.
type UnitStatistic struct {
	ID       uuid.UUID
	Name     string
	Type     UnitType
	ParentID *uuid.UUID
	Price    *int64
	Date     time.Time
}

// StatisticFromSnapshot converts a snapshot to its flat projection.
func StatisticFromSnapshot(s Snapshot) UnitStatistic {
	return UnitStatistic{
		ID:       s.ID,
		Name:     s.Name,
		Type:     s.Type,
		ParentID: s.ParentID,
		Price:    s.Price,
		Date:     s.Date,
	}
}
