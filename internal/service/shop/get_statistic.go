package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
	"github.com/heartmarshall/shop-catalog-backend/internal/service/shop/engine"
)

// ---------------------------------------------------------------------------
// GetStatistic
// ---------------------------------------------------------------------------

// GetStatistic returns the state of id at each point in [start, end) where
// its own fields or its aggregated price changed. Nil bounds are open.
func (s *Service) GetStatistic(ctx context.Context, id uuid.UUID, start, end *time.Time) (items []domain.UnitStatistic, err error) {
	began := time.Now()
	defer func() { s.observe("statistic", began, err) }()

	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	var snapshots []domain.Snapshot
	txErr := s.tx.RunRepeatableRead(ctx, func(txCtx context.Context) error {
		exists, err := s.units.Exists(txCtx, id)
		if err != nil {
			return fmt.Errorf("check unit: %w", err)
		}
		if !exists {
			return fmt.Errorf("unit %s: %w", id, domain.ErrNotFound)
		}

		snapshots, err = s.loadHistoricalSubtree(txCtx, id)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	s.metrics.ObserveSubtree("statistic", len(snapshots))

	return engine.ReconstructHistory(id, snapshots, start, end), nil
}

type snapshotKey struct {
	id   uuid.UUID
	date int64
}

// loadHistoricalSubtree collects every snapshot of id and, transitively,
// every snapshot that ever named a collected unit as its parent.
func (s *Service) loadHistoricalSubtree(ctx context.Context, id uuid.UUID) ([]domain.Snapshot, error) {
	own, err := s.snapshots.ListByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	loaded := make(map[snapshotKey]bool, len(own))
	for _, snap := range own {
		loaded[snapshotKey{snap.ID, snap.Date.UnixNano()}] = true
	}

	result := own
	seenUnits := map[uuid.UUID]bool{id: true}
	frontier := []uuid.UUID{id}

	for len(frontier) > 0 {
		children, err := s.snapshots.ListByParentIDs(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("list child snapshots: %w", err)
		}

		var next []uuid.UUID
		for _, snap := range children {
			key := snapshotKey{snap.ID, snap.Date.UnixNano()}
			if loaded[key] {
				continue
			}
			loaded[key] = true
			result = append(result, snap)

			if !seenUnits[snap.ID] && snap.Type.IsCategory() {
				seenUnits[snap.ID] = true
				next = append(next, snap.ID)
			}
		}
		frontier = next
	}

	return result, nil
}
