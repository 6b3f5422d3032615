package engine

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// attachment is a snapshot clipped to the time it spent inside the subtree.
// A nil to means the attachment is still open.
type attachment struct {
	snap domain.Snapshot
	from time.Time
	to   *time.Time
}

func (a attachment) covers(t time.Time) bool {
	return domain.Snapshot{Date: a.from, ValidTo: a.to}.Covers(t)
}

// pricePoint marks the start of a period with a distinct aggregate price.
type pricePoint struct {
	date  time.Time
	price *int64
}

// ReconstructHistory replays the snapshots of a node and of everything that
// was ever attached beneath it, and returns one record per moment its
// effective state changed inside [start, end). Nil bounds are open.
//
// snapshots must contain every snapshot of the node and, transitively, every
// snapshot whose parent is one of the loaded ids. Records are sorted by date.
func ReconstructHistory(id uuid.UUID, snapshots []domain.Snapshot, start, end *time.Time) []domain.UnitStatistic {
	var own []domain.Snapshot
	byParent := make(map[uuid.UUID][]domain.Snapshot)
	for _, s := range snapshots {
		if s.ID == id {
			own = append(own, s)
		}
		if s.ParentID != nil && *s.ParentID != s.ID {
			byParent[*s.ParentID] = append(byParent[*s.ParentID], s)
		}
	}
	if len(own) == 0 {
		return []domain.UnitStatistic{}
	}
	slices.SortFunc(own, func(a, b domain.Snapshot) int { return a.Date.Compare(b.Date) })

	var attached []attachment
	for _, s := range own {
		attached = collectAttachments(attached, byParent, attachment{snap: s, from: s.Date, to: s.ValidTo}, map[uuid.UUID]bool{})
	}

	changes := priceChanges(attached)

	dates := make([]time.Time, 0, len(own)+len(changes))
	for _, s := range own {
		dates = append(dates, s.Date)
	}
	for _, c := range changes {
		dates = append(dates, c.date)
	}
	dates = uniqueSorted(dates)

	records := make([]domain.UnitStatistic, 0, len(dates))
	for _, d := range dates {
		if start != nil && d.Before(*start) {
			continue
		}
		if end != nil && !d.Before(*end) {
			continue
		}
		self, ok := snapshotAt(own, d)
		if !ok {
			continue
		}
		rec := domain.StatisticFromSnapshot(self)
		rec.Price = priceAt(changes, d)
		rec.Date = d
		records = append(records, rec)
	}
	return records
}

// collectAttachments appends a and, recursively, every child snapshot that
// referenced a's unit while a was attached, clipped to the overlap.
func collectAttachments(dst []attachment, byParent map[uuid.UUID][]domain.Snapshot, a attachment, path map[uuid.UUID]bool) []attachment {
	if path[a.snap.ID] {
		return dst
	}
	dst = append(dst, a)
	path[a.snap.ID] = true
	defer delete(path, a.snap.ID)

	for _, child := range byParent[a.snap.ID] {
		from := a.from
		if child.Date.After(from) {
			from = child.Date
		}
		to := minEnd(a.to, child.ValidTo)
		if to != nil && !from.Before(*to) {
			continue
		}
		dst = collectAttachments(dst, byParent, attachment{snap: child, from: from, to: to}, path)
	}
	return dst
}

// priceChanges splits the timeline at every attachment boundary and returns
// the periods whose average offer price differs from the previous period.
func priceChanges(attached []attachment) []pricePoint {
	bounds := make([]time.Time, 0, 2*len(attached))
	for _, a := range attached {
		bounds = append(bounds, a.from)
		if a.to != nil {
			bounds = append(bounds, *a.to)
		}
	}
	bounds = uniqueSorted(bounds)

	var changes []pricePoint
	for i, b := range bounds {
		var acc priceAcc
		for _, a := range attached {
			if a.snap.Type == domain.UnitTypeOffer && a.snap.Price != nil && a.covers(b) {
				acc.add(*a.snap.Price)
			}
		}
		price := acc.mean()
		if i > 0 && samePrice(changes[len(changes)-1].price, price) {
			continue
		}
		changes = append(changes, pricePoint{date: b, price: price})
	}
	return changes
}

func priceAt(changes []pricePoint, t time.Time) *int64 {
	var price *int64
	for _, c := range changes {
		if c.date.After(t) {
			break
		}
		price = c.price
	}
	return price
}

// snapshotAt returns the snapshot in effect at t.
func snapshotAt(own []domain.Snapshot, t time.Time) (domain.Snapshot, bool) {
	for _, s := range own {
		if s.Covers(t) {
			return s, true
		}
	}
	return domain.Snapshot{}, false
}

func minEnd(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}

func uniqueSorted(ts []time.Time) []time.Time {
	slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(ts, func(a, b time.Time) bool { return a.Equal(b) })
}
