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
// GetNode
// ---------------------------------------------------------------------------

// GetNode returns the current subtree rooted at id with aggregated category
// prices and dates. Served from the tree cache when one is configured.
func (s *Service) GetNode(ctx context.Context, id uuid.UUID) (node *domain.UnitNode, err error) {
	start := time.Now()
	defer func() { s.observe("node", start, err) }()

	gen, cached := s.lookupTree(ctx, id)
	if cached != nil {
		return cached, nil
	}

	var loaded int
	txErr := s.tx.RunRepeatableRead(ctx, func(txCtx context.Context) error {
		root, err := s.snapshots.Current(txCtx, id)
		if err != nil {
			return err
		}

		descendants, err := s.loadCurrentSubtree(txCtx, root)
		if err != nil {
			return err
		}

		loaded = len(descendants) + 1
		node = engine.BuildTree(root, descendants)
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.metrics.ObserveSubtree("node", loaded)
	s.storeTree(ctx, gen, id, node)

	return node, nil
}

// loadCurrentSubtree walks current parent links level by level.
func (s *Service) loadCurrentSubtree(ctx context.Context, root domain.Snapshot) ([]domain.Snapshot, error) {
	var descendants []domain.Snapshot
	if !root.Type.IsCategory() {
		return descendants, nil
	}

	seen := map[uuid.UUID]bool{root.ID: true}
	frontier := []uuid.UUID{root.ID}

	for len(frontier) > 0 {
		children, err := s.snapshots.CurrentChildren(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("current children: %w", err)
		}

		var next []uuid.UUID
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			descendants = append(descendants, c)
			if c.Type.IsCategory() {
				next = append(next, c.ID)
			}
		}
		frontier = next
	}

	return descendants, nil
}

// lookupTree returns the generation to store under and, on a hit, the cached
// tree. Cache failures degrade to a miss.
func (s *Service) lookupTree(ctx context.Context, id uuid.UUID) (int64, *domain.UnitNode) {
	if s.cache == nil {
		return 0, nil
	}

	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.metrics.CacheLookup("error")
		s.log.WarnContext(ctx, "tree cache unavailable", slog.String("error", err.Error()))
		return -1, nil
	}

	node, found, err := s.cache.Get(ctx, gen, id)
	switch {
	case err != nil:
		s.metrics.CacheLookup("error")
		s.log.WarnContext(ctx, "tree cache read failed", slog.String("error", err.Error()))
		return gen, nil
	case !found:
		s.metrics.CacheLookup("miss")
		return gen, nil
	default:
		s.metrics.CacheLookup("hit")
		return gen, node
	}
}

// storeTree caches node under gen. A negative gen means the generation could
// not be read and nothing is stored.
func (s *Service) storeTree(ctx context.Context, gen int64, id uuid.UUID, node *domain.UnitNode) {
	if s.cache == nil || gen < 0 {
		return
	}
	if err := s.cache.Set(ctx, gen, id, node); err != nil {
		s.log.WarnContext(ctx, "tree cache write failed", slog.String("error", err.Error()))
	}
}
