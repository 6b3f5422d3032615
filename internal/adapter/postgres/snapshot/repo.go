// Package snapshot implements the append-only snapshot ledger using
// PostgreSQL. Every import writes one row per item; the previous open row of
// each touched unit is closed at the batch date.
package snapshot

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

const table = "shop_unit_snapshots"

// SalesWindow is how far back from the query date an offer update counts as
// a sale.
const SalesWindow = 24 * time.Hour

var (
	psql    = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	columns = []string{"id", "date", "type::text", "parent_id", "name", "price", "valid_to"}
)

// Repo provides snapshot persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new snapshot repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const insertSQL = `
INSERT INTO shop_unit_snapshots (id, date, type, parent_id, name, price)
VALUES ($1, $2, $3::text::shop_unit_type, $4, $5, $6)`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Insert writes one open snapshot per item, all dated date.
func (r *Repo) Insert(ctx context.Context, date time.Time, items []domain.ImportItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insertSQL, it.ID, date, string(it.Type), it.ParentID, it.Name, it.Price)
	}

	br := postgres.QuerierFromCtx(ctx, r.pool).SendBatch(ctx, batch)
	defer br.Close()

	for _, it := range items {
		if _, err := br.Exec(); err != nil {
			return postgres.MapError(err, "snapshot", it.ID)
		}
	}

	return nil
}

// CloseOpen ends, at date, every open snapshot of ids that started before
// date. It returns the number of closed snapshots.
func (r *Repo) CloseOpen(ctx context.Context, date time.Time, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := psql.
		Update(table).
		Set("valid_to", date).
		Where(sq.Expr("id = ANY(?::uuid[])", ids)).
		Where(sq.Eq{"valid_to": nil}).
		Where(sq.Lt{"date": date}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build close query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("close open snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// LatestDates returns the date of the newest snapshot of each id that has one.
func (r *Repo) LatestDates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	result := make(map[uuid.UUID]time.Time, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := psql.
		Select("id", "max(date)").
		From(table).
		Where(sq.Expr("id = ANY(?::uuid[])", ids)).
		GroupBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest dates query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uuid.UUID
			date time.Time
		)
		if err := rows.Scan(&id, &date); err != nil {
			return nil, fmt.Errorf("scan latest date: %w", err)
		}
		result[id] = date.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest snapshot dates: %w", err)
	}

	return result, nil
}

// Current returns the open snapshot of id.
// Returns domain.ErrNotFound if the unit has none.
func (r *Repo) Current(ctx context.Context, id uuid.UUID) (domain.Snapshot, error) {
	query, args, err := psql.
		Select(columns...).
		From(table).
		Where(sq.Eq{"id": id, "valid_to": nil}).
		ToSql()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("build current query: %w", err)
	}

	s, err := scanSnapshot(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Snapshot{}, postgres.MapError(err, "snapshot", id)
	}
	return s, nil
}

// CurrentChildren returns the open snapshots whose parent is one of
// parentIDs, ordered by parent id then id.
func (r *Repo) CurrentChildren(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error) {
	if len(parentIDs) == 0 {
		return []domain.Snapshot{}, nil
	}

	return r.list(ctx, "current children", psql.
		Select(columns...).
		From(table).
		Where(sq.Expr("parent_id = ANY(?::uuid[])", parentIDs)).
		Where(sq.Eq{"valid_to": nil}).
		OrderBy("parent_id", "id"))
}

// ListByIDs returns every snapshot of ids, ordered by id then date.
func (r *Repo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error) {
	if len(ids) == 0 {
		return []domain.Snapshot{}, nil
	}

	return r.list(ctx, "snapshots by ids", psql.
		Select(columns...).
		From(table).
		Where(sq.Expr("id = ANY(?::uuid[])", ids)).
		OrderBy("id", "date"))
}

// ListByParentIDs returns every snapshot, current or historical, whose parent
// is one of parentIDs, ordered by id then date.
func (r *Repo) ListByParentIDs(ctx context.Context, parentIDs []uuid.UUID) ([]domain.Snapshot, error) {
	if len(parentIDs) == 0 {
		return []domain.Snapshot{}, nil
	}

	return r.list(ctx, "snapshots by parent ids", psql.
		Select(columns...).
		From(table).
		Where(sq.Expr("parent_id = ANY(?::uuid[])", parentIDs)).
		OrderBy("id", "date"))
}

// ListSales returns the offer snapshots dated within [date-SalesWindow, date]
// that were still in effect at date, ordered by date then id.
func (r *Repo) ListSales(ctx context.Context, date time.Time) ([]domain.Snapshot, error) {
	return r.list(ctx, "sales", psql.
		Select(columns...).
		From(table).
		Where(sq.Expr("type = 'OFFER'")).
		Where(sq.GtOrEq{"date": date.Add(-SalesWindow)}).
		Where(sq.LtOrEq{"date": date}).
		Where(sq.Or{sq.Eq{"valid_to": nil}, sq.Gt{"valid_to": date}}).
		OrderBy("date", "id"))
}

func (r *Repo) list(ctx context.Context, what string, b sq.SelectBuilder) ([]domain.Snapshot, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", what, err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	defer rows.Close()

	result := []domain.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}

	return result, nil
}

func scanSnapshot(row pgx.Row) (domain.Snapshot, error) {
	var (
		s   domain.Snapshot
		typ string
	)
	if err := row.Scan(&s.ID, &s.Date, &typ, &s.ParentID, &s.Name, &s.Price, &s.ValidTo); err != nil {
		return domain.Snapshot{}, err
	}
	s.Type = domain.UnitType(typ)
	s.Date = s.Date.UTC()
	if s.ValidTo != nil {
		v := s.ValidTo.UTC()
		s.ValidTo = &v
	}
	return s, nil
}
