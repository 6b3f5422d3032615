package shop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// ===========================================================================
// Manual mocks (moq-style with func fields)
// ===========================================================================

type mockUnitRepo struct {
	GetByIDsFunc func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Unit, error)
	ExistsFunc   func(ctx context.Context, id uuid.UUID) (bool, error)
	HasCycleFunc func(ctx context.Context, ids []uuid.UUID) (bool, error)
	UpsertFunc   func(ctx context.Context, units []domain.Unit) error
	DeleteFunc   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockUnitRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Unit, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, ids)
	}
	return map[uuid.UUID]domain.Unit{}, nil
}

func (m *mockUnitRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return true, nil
}

func (m *mockUnitRepo) HasCycle(ctx context.Context, ids []uuid.UUID) (bool, error) {
	if m.HasCycleFunc != nil {
		return m.HasCycleFunc(ctx, ids)
	}
	return false, nil
}

func (m *mockUnitRepo) Upsert(ctx context.Context, units []domain.Unit) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, units)
	}
	return nil
}

func (m *mockUnitRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

type mockSnapshotRepo struct {
	InsertFunc          func(ctx context.Context, date time.Time, items []domain.ImportItem) error
	CloseOpenFunc       func(ctx context.Context, date time.Time, ids []uuid.UUID) (int64, error)
	LatestDatesFunc     func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]time.Time, error)
	CurrentFunc         func(ctx context.Context, id uuid.UUID) (domain.Snapshot, error)
	CurrentChildrenFunc func(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error)
	ListByIDsFunc       func(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error)
	ListByParentIDsFunc func(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error)
	ListSalesFunc       func(ctx context.Context, date time.Time) ([]domain.Snapshot, error)
}

func (m *mockSnapshotRepo) Insert(ctx context.Context, date time.Time, items []domain.ImportItem) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, date, items)
	}
	return nil
}

func (m *mockSnapshotRepo) CloseOpen(ctx context.Context, date time.Time, ids []uuid.UUID) (int64, error) {
	if m.CloseOpenFunc != nil {
		return m.CloseOpenFunc(ctx, date, ids)
	}
	return 0, nil
}

func (m *mockSnapshotRepo) LatestDates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	if m.LatestDatesFunc != nil {
		return m.LatestDatesFunc(ctx, ids)
	}
	return map[uuid.UUID]time.Time{}, nil
}

func (m *mockSnapshotRepo) Current(ctx context.Context, id uuid.UUID) (domain.Snapshot, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx, id)
	}
	return domain.Snapshot{}, domain.ErrNotFound
}

func (m *mockSnapshotRepo) CurrentChildren(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error) {
	if m.CurrentChildrenFunc != nil {
		return m.CurrentChildrenFunc(ctx, parentIDs)
	}
	return nil, nil
}

func (m *mockSnapshotRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error) {
	if m.ListByIDsFunc != nil {
		return m.ListByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *mockSnapshotRepo) ListByParentIDs(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error) {
	if m.ListByParentIDsFunc != nil {
		return m.ListByParentIDsFunc(ctx, parentIDs)
	}
	return nil, nil
}

func (m *mockSnapshotRepo) ListSales(ctx context.Context, date time.Time) ([]domain.Snapshot, error) {
	if m.ListSalesFunc != nil {
		return m.ListSalesFunc(ctx, date)
	}
	return nil, nil
}

type mockTxManager struct {
	RunSerializableFunc   func(ctx context.Context, fn func(context.Context) error) error
	RunRepeatableReadFunc func(ctx context.Context, fn func(context.Context) error) error
}

func (m *mockTxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunSerializableFunc != nil {
		return m.RunSerializableFunc(ctx, fn)
	}
	return fn(ctx)
}

func (m *mockTxManager) RunRepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunRepeatableReadFunc != nil {
		return m.RunRepeatableReadFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockTreeCache struct {
	GenerationFunc func(ctx context.Context) (int64, error)
	GetFunc        func(ctx context.Context, gen int64, id uuid.UUID) (*domain.UnitNode, bool, error)
	SetFunc        func(ctx context.Context, gen int64, id uuid.UUID, node *domain.UnitNode) error
	InvalidateFunc func(ctx context.Context) error
}

func (m *mockTreeCache) Generation(ctx context.Context) (int64, error) {
	if m.GenerationFunc != nil {
		return m.GenerationFunc(ctx)
	}
	return 0, nil
}

func (m *mockTreeCache) Get(ctx context.Context, gen int64, id uuid.UUID) (*domain.UnitNode, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, gen, id)
	}
	return nil, false, nil
}

func (m *mockTreeCache) Set(ctx context.Context, gen int64, id uuid.UUID, node *domain.UnitNode) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, gen, id, node)
	}
	return nil
}

func (m *mockTreeCache) Invalidate(ctx context.Context) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx)
	}
	return nil
}

// spyRecorder keeps what the service reported.
type spyRecorder struct {
	mu         sync.Mutex
	operations map[string]string
	imported   int
	cache      []string
}

func (r *spyRecorder) ObserveOperation(operation, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operations == nil {
		r.operations = make(map[string]string)
	}
	r.operations[operation] = status
}

func (r *spyRecorder) ObserveImport(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imported += n
}

func (r *spyRecorder) ObserveSubtree(string, int) {}

func (r *spyRecorder) CacheLookup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = append(r.cache, result)
}

// ===========================================================================
// Test helpers
// ===========================================================================

type testDeps struct {
	units     *mockUnitRepo
	snapshots *mockSnapshotRepo
	tx        *mockTxManager
	metrics   *spyRecorder
}

func defaultCfg() config.ImportConfig {
	return config.ImportConfig{
		MaxItems:             100,
		SerializationRetries: 3,
		RetryBaseDelay:       time.Millisecond,
	}
}

func newTestService(cfg config.ImportConfig) (*Service, *testDeps) {
	deps := &testDeps{
		units:     &mockUnitRepo{},
		snapshots: &mockSnapshotRepo{},
		tx:        &mockTxManager{},
		metrics:   &spyRecorder{},
	}
	svc := NewService(slog.Default(), deps.units, deps.snapshots, deps.tx, cfg)
	svc.SetMetrics(deps.metrics)
	return svc, deps
}
