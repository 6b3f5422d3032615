// Package unit implements the identity registry of shop units using
// PostgreSQL: which ids exist, their immutable type and their current parent.
// Deleting a unit cascades through its current descendants.
package unit

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

const table = "shop_units"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides shop unit identity persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new unit repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

// The parent type is resolved from the registry itself so that a parent that
// is not a category fails the check constraint, and a missing parent fails
// the MATCH FULL foreign key.
const upsertSQL = `
INSERT INTO shop_units (id, type, parent_id, parent_type)
VALUES ($1, $2::text::shop_unit_type, $3, (SELECT p.type FROM shop_units p WHERE p.id = $3))
ON CONFLICT (id) DO UPDATE
SET parent_id = EXCLUDED.parent_id,
    parent_type = EXCLUDED.parent_type`

// Walks up from every given id; CYCLE stops the walk at the first repeated id.
const hasCycleSQL = `
WITH RECURSIVE chain (start_id, id) AS (
    SELECT u.id, u.parent_id
    FROM shop_units u
    WHERE u.id = ANY($1::uuid[]) AND u.parent_id IS NOT NULL
  UNION ALL
    SELECT c.start_id, u.parent_id
    FROM chain c
    JOIN shop_units u ON u.id = c.id
    WHERE u.parent_id IS NOT NULL AND c.id <> c.start_id
) CYCLE id SET is_cycle USING path
SELECT EXISTS (SELECT 1 FROM chain WHERE id = start_id)`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByIDs returns the registered units among ids, keyed by id.
// Unknown ids are simply absent from the result.
func (r *Repo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Unit, error) {
	result := make(map[uuid.UUID]domain.Unit, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := psql.
		Select("id", "type::text", "parent_id").
		From(table).
		Where(sq.Expr("id = ANY(?::uuid[])", ids)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get units query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get units by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u   domain.Unit
			typ string
		)
		if err := rows.Scan(&u.ID, &typ, &u.ParentID); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u.Type = domain.UnitType(typ)
		result[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get units by ids: %w", err)
	}

	return result, nil
}

// Exists reports whether a unit with the given id is registered.
func (r *Repo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	query, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From(table).
		Where(sq.Eq{"id": id}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var exists bool
	if err := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, postgres.MapError(err, "shop unit", id)
	}
	return exists, nil
}

// HasCycle reports whether following current parent links from any of ids
// leads back to the starting id.
func (r *Repo) HasCycle(ctx context.Context, ids []uuid.UUID) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	var cycle bool
	if err := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, hasCycleSQL, ids).Scan(&cycle); err != nil {
		return false, fmt.Errorf("check parent cycle: %w", err)
	}
	return cycle, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Upsert registers units in the given order, which must place parents before
// their children. For existing units only the parent link is updated; the
// type of a unit never changes.
func (r *Repo) Upsert(ctx context.Context, units []domain.Unit) error {
	if len(units) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range units {
		batch.Queue(upsertSQL, u.ID, string(u.Type), u.ParentID)
	}

	br := postgres.QuerierFromCtx(ctx, r.pool).SendBatch(ctx, batch)
	defer br.Close()

	for _, u := range units {
		if _, err := br.Exec(); err != nil {
			return postgres.MapError(err, "shop unit", u.ID)
		}
	}

	return nil
}

// Delete removes a unit. Every unit whose current parent chain passes through
// it is removed as well, together with all of their snapshots; surviving
// snapshots that referenced a removed unit lose their parent reference.
// Returns domain.ErrNotFound if the unit does not exist.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "shop unit", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shop unit %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
