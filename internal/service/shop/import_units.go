package shop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
	"github.com/heartmarshall/shop-catalog-backend/internal/service/shop/engine"
)

// ---------------------------------------------------------------------------
// ImportUnits
// ---------------------------------------------------------------------------

// ImportUnits applies a batch atomically: every item gets a new snapshot
// dated batch.UpdateDate and the previous snapshot of each touched unit is
// closed at that date. Runs SERIALIZABLE; the transaction manager retries
// serialization failures and reports domain.ErrConflict once they persist.
func (s *Service) ImportUnits(ctx context.Context, batch domain.ImportBatch) (err error) {
	start := time.Now()
	defer func() { s.observe("import", start, err) }()

	if len(batch.Items) == 0 {
		return nil
	}
	if err := validateBatch(batch, s.cfg.MaxItems); err != nil {
		return err
	}

	ordered, err := engine.SolveInsertionOrder(batch.Items)
	if err != nil {
		return err
	}

	date := batch.UpdateDate.UTC()
	ids := make([]uuid.UUID, len(ordered))
	units := make([]domain.Unit, len(ordered))
	for i, item := range ordered {
		ids[i] = item.ID
		units[i] = item.Unit()
	}

	txErr := s.tx.RunSerializable(ctx, func(txCtx context.Context) error {
		if err := s.checkAgainstStored(txCtx, batch, date); err != nil {
			return err
		}

		if err := s.units.Upsert(txCtx, units); err != nil {
			return fmt.Errorf("upsert units: %w", err)
		}

		cycle, err := s.units.HasCycle(txCtx, ids)
		if err != nil {
			return fmt.Errorf("check cycles: %w", err)
		}
		if cycle {
			return domain.NewValidationError("items", "parent chain forms a cycle")
		}

		// The open snapshot of a unit is unique, so predecessors are closed
		// before the new snapshots go in.
		if _, err := s.snapshots.CloseOpen(txCtx, date, ids); err != nil {
			return fmt.Errorf("close snapshots: %w", err)
		}
		if err := s.snapshots.Insert(txCtx, date, ordered); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.invalidateCache(ctx)
	s.metrics.ObserveImport(len(ordered))

	s.log.InfoContext(ctx, "import applied",
		slog.Int("items", len(ordered)),
		slog.Time("update_date", date),
	)

	return nil
}

// checkAgainstStored validates the batch against units that already exist:
// types are immutable, parents must be categories, and histories only grow
// forward in time.
func (s *Service) checkAgainstStored(ctx context.Context, batch domain.ImportBatch, date time.Time) error {
	inBatch := make(map[uuid.UUID]domain.ImportItem, len(batch.Items))
	lookup := make([]uuid.UUID, 0, len(batch.Items)*2)
	for _, item := range batch.Items {
		inBatch[item.ID] = item
		lookup = append(lookup, item.ID)
	}
	for _, item := range batch.Items {
		if item.ParentID != nil {
			if _, ok := inBatch[*item.ParentID]; !ok {
				lookup = append(lookup, *item.ParentID)
			}
		}
	}

	stored, err := s.units.GetByIDs(ctx, lookup)
	if err != nil {
		return fmt.Errorf("get units: %w", err)
	}

	var errs []domain.FieldError
	for i, item := range batch.Items {
		if existing, ok := stored[item.ID]; ok && existing.Type != item.Type {
			errs = append(errs, domain.FieldError{
				Field:   itemField(i, "type"),
				Message: fmt.Sprintf("cannot change from %s to %s", existing.Type, item.Type),
			})
		}

		if item.ParentID == nil {
			continue
		}
		parentType, ok := parentTypeOf(*item.ParentID, inBatch, stored)
		switch {
		case !ok:
			errs = append(errs, domain.FieldError{
				Field:   itemField(i, "parentId"),
				Message: fmt.Sprintf("parent %s does not exist", *item.ParentID),
			})
		case !parentType.IsCategory():
			errs = append(errs, domain.FieldError{
				Field:   itemField(i, "parentId"),
				Message: "parent must be a category",
			})
		}
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}

	ids := make([]uuid.UUID, 0, len(batch.Items))
	for _, item := range batch.Items {
		ids = append(ids, item.ID)
	}
	latest, err := s.snapshots.LatestDates(ctx, ids)
	if err != nil {
		return fmt.Errorf("latest dates: %w", err)
	}
	for _, item := range batch.Items {
		if last, ok := latest[item.ID]; ok && !last.Before(date) {
			return domain.NewValidationError("updateDate",
				fmt.Sprintf("must be later than the last update of %s (%s)", item.ID, domain.FormatTimestamp(last)))
		}
	}

	return nil
}

// parentTypeOf resolves the type a parent will have once the batch is
// applied: a parent in the batch wins over the stored one.
func parentTypeOf(id uuid.UUID, inBatch map[uuid.UUID]domain.ImportItem, stored map[uuid.UUID]domain.Unit) (domain.UnitType, bool) {
	if item, ok := inBatch[id]; ok {
		return item.Type, true
	}
	if u, ok := stored[id]; ok {
		return u.Type, true
	}
	return "", false
}
