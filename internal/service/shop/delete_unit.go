package shop

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DeleteUnit removes a unit with its whole current subtree and their
// histories. Historical snapshots of surviving units that pointed at a
// removed unit lose that parent link.
func (s *Service) DeleteUnit(ctx context.Context, id uuid.UUID) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()

	txErr := s.tx.RunSerializable(ctx, func(txCtx context.Context) error {
		return s.units.Delete(txCtx, id)
	})
	if txErr != nil {
		return txErr
	}

	s.invalidateCache(ctx)

	s.log.InfoContext(ctx, "unit deleted", slog.String("id", id.String()))
	return nil
}
