package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// GetSales returns the offers updated within the 24 hours up to and including
// date whose update was still in effect at date.
func (s *Service) GetSales(ctx context.Context, date time.Time) (items []domain.UnitStatistic, err error) {
	start := time.Now()
	defer func() { s.observe("sales", start, err) }()

	var snapshots []domain.Snapshot
	txErr := s.tx.RunRepeatableRead(ctx, func(txCtx context.Context) error {
		var err error
		snapshots, err = s.snapshots.ListSales(txCtx, date.UTC())
		if err != nil {
			return fmt.Errorf("list sales: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	items = make([]domain.UnitStatistic, len(snapshots))
	for i, snap := range snapshots {
		items[i] = domain.StatisticFromSnapshot(snap)
	}
	return items, nil
}
