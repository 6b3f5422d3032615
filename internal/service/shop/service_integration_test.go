package shop_test

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/snapshot"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/unit"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/redis/treecache"
	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
	"github.com/heartmarshall/shop-catalog-backend/internal/service/shop"
)

func newIntegrationService(t *testing.T) *shop.Service {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	tx := postgres.NewTxManager(pool, postgres.WithSerializationRetries(5, time.Millisecond))
	return shop.NewService(slog.Default(), unit.New(pool), snapshot.New(pool), tx, config.ImportConfig{
		MaxItems:             1000,
		SerializationRetries: 5,
		RetryBaseDelay:       time.Millisecond,
	})
}

func importCatalog(t *testing.T, svc *shop.Service) {
	t.Helper()
	for _, batch := range testhelper.CatalogBatches() {
		require.NoError(t, svc.ImportUnits(context.Background(), batch))
	}
}

func prices(items []domain.UnitStatistic) []any {
	out := make([]any, len(items))
	for i, it := range items {
		if it.Price == nil {
			out[i] = nil
			continue
		}
		out[i] = *it.Price
	}
	return out
}

func TestIntegration_ReferenceCatalog(t *testing.T) {
	t.Parallel()
	svc := newIntegrationService(t)
	ctx := context.Background()
	importCatalog(t, svc)

	root, err := svc.GetNode(ctx, testhelper.GoodsID)
	require.NoError(t, err)
	require.NotNil(t, root.Price)
	assert.Equal(t, int64(58599), *root.Price)
	assert.Equal(t, testhelper.MustTime("2022-02-03T15:00:00.000Z"), root.Date)
	assert.Len(t, root.Children, 2)

	history, err := svc.GetStatistic(ctx, testhelper.GoodsID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, int64(69999), int64(55749), int64(58599)}, prices(history))

	sales, err := svc.GetSales(ctx, testhelper.MustTime("2022-02-03T15:00:00.000Z"))
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
	}
	assert.ElementsMatch(t, []uuid.UUID{testhelper.SamsonID, testhelper.PhyllisID, testhelper.GoldstarID}, ids)
}

func TestIntegration_DeleteCascades(t *testing.T) {
	t.Parallel()
	svc := newIntegrationService(t)
	ctx := context.Background()
	importCatalog(t, svc)

	require.NoError(t, svc.DeleteUnit(ctx, testhelper.PhonesID))

	_, err := svc.GetNode(ctx, testhelper.JPhoneID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	root, err := svc.GetNode(ctx, testhelper.GoodsID)
	require.NoError(t, err)
	assert.Equal(t, int64(50999), *root.Price)

	history, err := svc.GetStatistic(ctx, testhelper.GoodsID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, int64(41499), int64(50999)}, prices(history))

	err = svc.DeleteUnit(ctx, testhelper.PhonesID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIntegration_ImportRejections(t *testing.T) {
	t.Parallel()
	svc := newIntegrationService(t)
	ctx := context.Background()
	importCatalog(t, svc)

	phones := testhelper.PhonesID
	tests := []struct {
		name  string
		batch domain.ImportBatch
	}{
		{
			name: "stale date",
			batch: domain.ImportBatch{
				UpdateDate: testhelper.MustTime("2022-02-02T12:00:00.000Z"),
				Items: []domain.ImportItem{
					{ID: testhelper.JPhoneID, Type: domain.UnitTypeOffer, ParentID: &phones, Name: "jPhone", Price: testhelper.Price(1)},
				},
			},
		},
		{
			name: "type change",
			batch: domain.ImportBatch{
				UpdateDate: testhelper.MustTime("2022-03-01T00:00:00.000Z"),
				Items: []domain.ImportItem{
					{ID: testhelper.JPhoneID, Type: domain.UnitTypeCategory, ParentID: &phones, Name: "jPhone"},
				},
			},
		},
		{
			name: "offer as parent",
			batch: domain.ImportBatch{
				UpdateDate: testhelper.MustTime("2022-03-01T00:00:00.000Z"),
				Items: []domain.ImportItem{
					{ID: uuid.New(), Type: domain.UnitTypeOffer, ParentID: &testhelper.XomiaID, Name: "case", Price: testhelper.Price(1)},
				},
			},
		},
		{
			name: "cycle through stored parents",
			batch: domain.ImportBatch{
				UpdateDate: testhelper.MustTime("2022-03-01T00:00:00.000Z"),
				Items: []domain.ImportItem{
					{ID: testhelper.GoodsID, Type: domain.UnitTypeCategory, ParentID: &phones, Name: "Товары"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ImportUnits(ctx, tt.batch)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	root, err := svc.GetNode(ctx, testhelper.GoodsID)
	require.NoError(t, err)
	assert.Equal(t, int64(58599), *root.Price, "rejected batches leave no trace")
}

func TestIntegration_CacheInvalidatedOnImport(t *testing.T) {
	t.Parallel()
	svc := newIntegrationService(t)
	cache := treecache.New(testhelper.SetupTestRedis(t), "it-"+uuid.NewString(), time.Minute, slog.Default())
	svc.SetCache(cache)
	ctx := context.Background()
	importCatalog(t, svc)

	first, err := svc.GetNode(ctx, testhelper.TVsID)
	require.NoError(t, err)
	assert.Equal(t, int64(50999), *first.Price)

	gen, err := cache.Generation(ctx)
	require.NoError(t, err)
	_, found, err := cache.Get(ctx, gen, testhelper.TVsID)
	require.NoError(t, err)
	assert.True(t, found, "tree is cached after the first read")

	tvs := testhelper.TVsID
	require.NoError(t, svc.ImportUnits(ctx, domain.ImportBatch{
		UpdateDate: testhelper.MustTime("2022-02-04T12:00:00.000Z"),
		Items: []domain.ImportItem{
			{ID: testhelper.SamsonID, Type: domain.UnitTypeOffer, ParentID: &tvs, Name: "Samson", Price: testhelper.Price(2999)},
		},
	}))

	second, err := svc.GetNode(ctx, testhelper.TVsID)
	require.NoError(t, err)
	assert.Equal(t, int64(40999), *second.Price, "floor((2999+49999+69999)/3)")
}

// extraBatch adds two new roots, one of them two levels deep, and an offer
// under a category stored by an earlier batch.
func extraBatch() (domain.ImportBatch, []uuid.UUID) {
	var (
		appliances = uuid.MustParse("3f0e6a4c-1f57-4a8e-9e0b-5f3f6c1d2a01")
		kettles    = uuid.MustParse("3f0e6a4c-1f57-4a8e-9e0b-5f3f6c1d2a02")
		books      = uuid.MustParse("3f0e6a4c-1f57-4a8e-9e0b-5f3f6c1d2a03")
		tvs        = testhelper.TVsID
	)
	batch := domain.ImportBatch{
		UpdateDate: testhelper.MustTime("2022-02-05T09:30:00.000Z"),
		Items: []domain.ImportItem{
			{ID: appliances, Type: domain.UnitTypeCategory, Name: "Appliances"},
			{ID: kettles, Type: domain.UnitTypeCategory, ParentID: &appliances, Name: "Kettles"},
			{ID: uuid.MustParse("3f0e6a4c-1f57-4a8e-9e0b-5f3f6c1d2a04"), Type: domain.UnitTypeOffer, ParentID: &kettles, Name: "Kettle", Price: testhelper.Price(1999)},
			{ID: books, Type: domain.UnitTypeCategory, Name: "Books"},
			{ID: uuid.MustParse("3f0e6a4c-1f57-4a8e-9e0b-5f3f6c1d2a05"), Type: domain.UnitTypeOffer, ParentID: &books, Name: "Novel", Price: testhelper.Price(499)},
			{ID: uuid.MustParse("3f0e6a4c-1f57-4a8e-9e0b-5f3f6c1d2a06"), Type: domain.UnitTypeOffer, ParentID: &tvs, Name: "Projector", Price: testhelper.Price(99999)},
		},
	}
	return batch, []uuid.UUID{testhelper.GoodsID, appliances, books}
}

func permuted(items []domain.ImportItem, perm func([]domain.ImportItem)) []domain.ImportItem {
	out := slices.Clone(items)
	perm(out)
	return out
}

type catalogView struct {
	nodes   []*domain.UnitNode
	history [][]domain.UnitStatistic
}

func viewOf(t *testing.T, svc *shop.Service, roots []uuid.UUID) catalogView {
	t.Helper()
	ctx := context.Background()
	var v catalogView
	for _, id := range append(slices.Clone(roots), testhelper.TVsID) {
		node, err := svc.GetNode(ctx, id)
		require.NoError(t, err)
		v.nodes = append(v.nodes, node)

		h, err := svc.GetStatistic(ctx, id, nil, nil)
		require.NoError(t, err)
		v.history = append(v.history, h)
	}
	return v
}

func TestIntegration_ItemOrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	perms := []struct {
		name string
		fn   func([]domain.ImportItem)
	}{
		{"as listed", func([]domain.ImportItem) {}},
		{"reversed", func(items []domain.ImportItem) { slices.Reverse(items) }},
		{"shuffled seed 1", func(items []domain.ImportItem) {
			r := rand.New(rand.NewPCG(1, 1))
			r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		}},
		{"shuffled seed 7", func(items []domain.ImportItem) {
			r := rand.New(rand.NewPCG(7, 7))
			r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		}},
	}

	extra, roots := extraBatch()
	views := make([]catalogView, len(perms))

	for i, p := range perms {
		svc := newIntegrationService(t)
		ctx := context.Background()
		for _, b := range append(testhelper.CatalogBatches(), extra) {
			b.Items = permuted(b.Items, p.fn)
			require.NoError(t, svc.ImportUnits(ctx, b), p.name)
		}
		views[i] = viewOf(t, svc, roots)
	}

	require.NotNil(t, views[0].nodes[0].Price)
	assert.Equal(t, int64(65499), *views[0].nodes[0].Price, "floor((79999+59999+32999+49999+69999+99999)/6)")
	for i := 1; i < len(views); i++ {
		assert.Equal(t, views[0], views[i], "permutation %q", perms[i].name)
	}
}

func TestIntegration_DeleteOrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ancestor  uuid.UUID
		leafFirst []uuid.UUID
		survivor  *uuid.UUID
	}{
		{
			name:      "subcategory",
			ancestor:  testhelper.PhonesID,
			leafFirst: []uuid.UUID{testhelper.JPhoneID, testhelper.XomiaID, testhelper.PhonesID},
			survivor:  &testhelper.GoodsID,
		},
		{
			name:     "whole catalog",
			ancestor: testhelper.GoodsID,
			leafFirst: []uuid.UUID{
				testhelper.SamsonID, testhelper.PhyllisID, testhelper.GoldstarID,
				testhelper.JPhoneID, testhelper.XomiaID,
				testhelper.TVsID, testhelper.PhonesID, testhelper.GoodsID,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			direct := newIntegrationService(t)
			importCatalog(t, direct)
			require.NoError(t, direct.DeleteUnit(ctx, tt.ancestor))

			stepwise := newIntegrationService(t)
			importCatalog(t, stepwise)
			for _, id := range tt.leafFirst {
				require.NoError(t, stepwise.DeleteUnit(ctx, id))
			}

			for _, svc := range []*shop.Service{direct, stepwise} {
				for _, id := range tt.leafFirst {
					_, err := svc.GetNode(ctx, id)
					require.ErrorIs(t, err, domain.ErrNotFound, "unit %s", id)
				}
			}

			salesDate := testhelper.MustTime("2022-02-03T15:00:00.000Z")
			directSales, err := direct.GetSales(ctx, salesDate)
			require.NoError(t, err)
			stepwiseSales, err := stepwise.GetSales(ctx, salesDate)
			require.NoError(t, err)
			assert.Equal(t, directSales, stepwiseSales)

			if tt.survivor == nil {
				assert.Empty(t, directSales)
				return
			}

			directRoot, err := direct.GetNode(ctx, *tt.survivor)
			require.NoError(t, err)
			stepwiseRoot, err := stepwise.GetNode(ctx, *tt.survivor)
			require.NoError(t, err)
			assert.Equal(t, directRoot, stepwiseRoot)

			directHistory, err := direct.GetStatistic(ctx, *tt.survivor, nil, nil)
			require.NoError(t, err)
			stepwiseHistory, err := stepwise.GetStatistic(ctx, *tt.survivor, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, directHistory, stepwiseHistory)
		})
	}
}
