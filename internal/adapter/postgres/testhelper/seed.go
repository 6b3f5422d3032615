package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// Reference catalog ids.
var (
	GoodsID    = uuid.MustParse("069cb8d7-bbdd-47d3-ad8f-82ef4c269df1")
	PhonesID   = uuid.MustParse("d515e43f-f3f6-4471-bb77-6b455017a2d2")
	JPhoneID   = uuid.MustParse("863e1a7a-1304-42ae-943b-179184c077e3")
	XomiaID    = uuid.MustParse("b1d8fd7d-2ae3-47d5-b2f9-0f094af800d4")
	TVsID      = uuid.MustParse("1cc0129a-2bfe-474c-9ee6-d435bf5fc8f2")
	SamsonID   = uuid.MustParse("98883e8f-0507-482f-bce2-2fb306cf6483")
	PhyllisID  = uuid.MustParse("74b81fda-9cdc-4b63-8927-c978afed5cf4")
	GoldstarID = uuid.MustParse("73bc3b36-02d1-4245-ab35-3106c9ee1c65")
)

// MustTime parses a wire timestamp and panics on failure.
func MustTime(s string) time.Time {
	t, err := domain.ParseTimestamp("date", s)
	if err != nil {
		panic(err)
	}
	return t
}

// Price returns a pointer to p.
func Price(p int64) *int64 { return &p }

// CatalogBatches returns the four reference import batches: a root category,
// a phones category with two offers, a TV category with two offers and a
// late third TV offer.
func CatalogBatches() []domain.ImportBatch {
	goods, phones, tvs := GoodsID, PhonesID, TVsID
	return []domain.ImportBatch{
		{
			UpdateDate: MustTime("2022-02-01T12:00:00.000Z"),
			Items: []domain.ImportItem{
				{ID: GoodsID, Type: domain.UnitTypeCategory, Name: "Товары"},
			},
		},
		{
			UpdateDate: MustTime("2022-02-02T12:00:00.000Z"),
			Items: []domain.ImportItem{
				{ID: PhonesID, Type: domain.UnitTypeCategory, ParentID: &goods, Name: "Смартфоны"},
				{ID: JPhoneID, Type: domain.UnitTypeOffer, ParentID: &phones, Name: "jPhone 13", Price: Price(79999)},
				{ID: XomiaID, Type: domain.UnitTypeOffer, ParentID: &phones, Name: "Xomia Readme 10", Price: Price(59999)},
			},
		},
		{
			UpdateDate: MustTime("2022-02-03T12:00:00.000Z"),
			Items: []domain.ImportItem{
				{ID: TVsID, Type: domain.UnitTypeCategory, ParentID: &goods, Name: "Телевизоры"},
				{ID: SamsonID, Type: domain.UnitTypeOffer, ParentID: &tvs, Name: "Samson 70\" LED UHD Smart", Price: Price(32999)},
				{ID: PhyllisID, Type: domain.UnitTypeOffer, ParentID: &tvs, Name: "Phyllis 50\" LED UHD Smarter", Price: Price(49999)},
			},
		},
		{
			UpdateDate: MustTime("2022-02-03T15:00:00.000Z"),
			Items: []domain.ImportItem{
				{ID: GoldstarID, Type: domain.UnitTypeOffer, ParentID: &tvs, Name: "Goldstar 65\" LED UHD LOL Very Smart", Price: Price(69999)},
			},
		},
	}
}

// SeedUnit inserts an identity row directly.
func SeedUnit(t *testing.T, pool *pgxpool.Pool, u domain.Unit, parentType *domain.UnitType) {
	t.Helper()

	var pt *string
	if parentType != nil {
		s := string(*parentType)
		pt = &s
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO shop_units (id, type, parent_id, parent_type)
		 VALUES ($1, $2::text::shop_unit_type, $3, $4::text::shop_unit_type)`,
		u.ID, string(u.Type), u.ParentID, pt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedUnit %s: %v", u.ID, err)
	}
}

// SeedSnapshot inserts a snapshot row directly, bypassing predecessor closing.
func SeedSnapshot(t *testing.T, pool *pgxpool.Pool, s domain.Snapshot) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`INSERT INTO shop_unit_snapshots (id, date, type, parent_id, name, price, valid_to)
		 VALUES ($1, $2, $3::text::shop_unit_type, $4, $5, $6, $7)`,
		s.ID, s.Date, string(s.Type), s.ParentID, s.Name, s.Price, s.ValidTo,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSnapshot %s@%s: %v", s.ID, s.Date, err)
	}
}

// CountSnapshots returns the number of stored snapshots of id.
func CountSnapshots(t *testing.T, pool *pgxpool.Pool, id uuid.UUID) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM shop_unit_snapshots WHERE id = $1`, id,
	).Scan(&n)
	if err != nil {
		t.Fatalf("testhelper: CountSnapshots: %v", err)
	}
	return n
}
