package shop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
	"github.com/heartmarshall/shop-catalog-backend/internal/metrics"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type unitRepo interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Unit, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	HasCycle(ctx context.Context, ids []uuid.UUID) (bool, error)
	Upsert(ctx context.Context, units []domain.Unit) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type snapshotRepo interface {
	Insert(ctx context.Context, date time.Time, items []domain.ImportItem) error
	CloseOpen(ctx context.Context, date time.Time, ids []uuid.UUID) (int64, error)
	LatestDates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]time.Time, error)
	Current(ctx context.Context, id uuid.UUID) (domain.Snapshot, error)
	CurrentChildren(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error)
	ListByParentIDs(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error)
	ListSales(ctx context.Context, date time.Time) ([]domain.Snapshot, error)
}

type txManager interface {
	RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error
	RunRepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error
}

type treeCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, id uuid.UUID) (*domain.UnitNode, bool, error)
	Set(ctx context.Context, gen int64, id uuid.UUID, node *domain.UnitNode) error
	Invalidate(ctx context.Context) error
}

type recorder interface {
	ObserveOperation(operation, status string, d time.Duration)
	ObserveImport(n int)
	ObserveSubtree(operation string, n int)
	CacheLookup(result string)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the catalog business logic: imports, deletes and the
// three read projections over the snapshot ledger.
type Service struct {
	log       *slog.Logger
	units     unitRepo
	snapshots snapshotRepo
	tx        txManager
	cache     treeCache
	metrics   recorder
	cfg       config.ImportConfig
}

// NewService creates a new shop Service.
func NewService(
	logger *slog.Logger,
	units unitRepo,
	snapshots snapshotRepo,
	tx txManager,
	cfg config.ImportConfig,
) *Service {
	return &Service{
		log:       logger.With("service", "shop"),
		units:     units,
		snapshots: snapshots,
		tx:        tx,
		metrics:   nopRecorder{},
		cfg:       cfg,
	}
}

// SetCache injects the optional tree cache.
func (s *Service) SetCache(c treeCache) {
	s.cache = c
}

// SetMetrics injects the metrics recorder.
func (s *Service) SetMetrics(m recorder) {
	s.metrics = m
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Service) observe(operation string, start time.Time, err error) {
	s.metrics.ObserveOperation(operation, statusOf(err), time.Since(start))
}

// invalidateCache drops cached trees after a committed write. Failures are
// logged only: the write itself has already succeeded.
func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.ErrorContext(ctx, "tree cache invalidation failed",
			slog.String("error", err.Error()),
		)
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return metrics.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return metrics.StatusInvalid
	case errors.Is(err, domain.ErrConflict):
		return metrics.StatusConflict
	default:
		return metrics.StatusError
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveImport(int)                             {}
func (nopRecorder) ObserveSubtree(string, int)                    {}
func (nopRecorder) CacheLookup(string)                            {}
