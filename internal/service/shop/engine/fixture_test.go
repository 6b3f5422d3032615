package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

var (
	goodsID      = uuid.MustParse("069cb8d7-bbdd-47d3-ad8f-82ef4c269df1")
	phonesID     = uuid.MustParse("d515e43f-f3f6-4471-bb77-6b455017a2d2")
	jPhoneID     = uuid.MustParse("863e1a7a-1304-42ae-943b-179184c077e3")
	xomiaID      = uuid.MustParse("b1d8fd7d-2ae3-47d5-b2f9-0f094af800d4")
	tvsID        = uuid.MustParse("1cc0129a-2bfe-474c-9ee6-d435bf5fc8f2")
	samsonID     = uuid.MustParse("98883e8f-0507-482f-bce2-2fb306cf6483")
	phyllisID    = uuid.MustParse("74b81fda-9cdc-4b63-8927-c978afed5cf4")
	goldstarID   = uuid.MustParse("73bc3b36-02d1-4245-ab35-3106c9ee1c65")
	batch1       = ts("2022-02-01T12:00:00.000Z")
	batch2       = ts("2022-02-02T12:00:00.000Z")
	batch3       = ts("2022-02-03T12:00:00.000Z")
	batch4       = ts("2022-02-03T15:00:00.000Z")
	summerUpdate = ts("2022-06-26T15:00:00.000Z")
)

func ts(s string) time.Time {
	t, err := domain.ParseTimestamp("date", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func category(id uuid.UUID, parent *uuid.UUID, name string, date time.Time) domain.Snapshot {
	return domain.Snapshot{ID: id, Date: date, Type: domain.UnitTypeCategory, ParentID: parent, Name: name}
}

func offer(id uuid.UUID, parent *uuid.UUID, name string, price int64, date time.Time) domain.Snapshot {
	return domain.Snapshot{ID: id, Date: date, Type: domain.UnitTypeOffer, ParentID: parent, Name: name, Price: ptr(price)}
}

// catalog returns the snapshots produced by the four reference batches.
func catalog() []domain.Snapshot {
	return []domain.Snapshot{
		category(goodsID, nil, "Товары", batch1),
		category(phonesID, &goodsID, "Смартфоны", batch2),
		offer(jPhoneID, &phonesID, "jPhone 13", 79999, batch2),
		offer(xomiaID, &phonesID, "Xomia Readme 10", 59999, batch2),
		category(tvsID, &goodsID, "Телевизоры", batch3),
		offer(samsonID, &tvsID, "Samson 70\" LED UHD Smart", 32999, batch3),
		offer(phyllisID, &tvsID, "Phyllis 50\" LED UHD Smarter", 49999, batch3),
		offer(goldstarID, &tvsID, "Goldstar 65\" LED UHD LOL Very Smart", 69999, batch4),
	}
}

// reimport closes the current snapshot of s.ID in snaps and appends s.
func reimport(snaps []domain.Snapshot, s domain.Snapshot) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(snaps)+1)
	for _, old := range snaps {
		if old.ID == s.ID && old.ValidTo == nil {
			old.ValidTo = ptr(s.Date)
		}
		out = append(out, old)
	}
	return append(out, s)
}

func without(snaps []domain.Snapshot, id uuid.UUID) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
