// Package treecache caches materialized subtrees in Redis.
//
// Entries are keyed by a generation number. Every committed import or delete
// bumps the generation, which makes all previously stored trees unreachable;
// they then expire through their TTL. Readers must take the generation before
// they start reading the database, so a tree computed from data that a
// concurrent write has since replaced is stored under a stale generation.
package treecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// Cache stores tree projections in Redis.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// New creates a Cache. prefix namespaces every key the cache touches.
func New(client redis.UniversalClient, prefix string, ttl time.Duration, log *slog.Logger) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With("component", "treecache"),
	}
}

func (c *Cache) generationKey() string {
	return c.prefix + ":tree:gen"
}

func (c *Cache) entryKey(gen int64, id uuid.UUID) string {
	return fmt.Sprintf("%s:tree:%d:%s", c.prefix, gen, id)
}

// Generation returns the current generation. A missing counter is generation 0.
func (c *Cache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("treecache: get generation: %w", err)
	}
	return gen, nil
}

// Get returns the tree rooted at id stored under gen.
func (c *Cache) Get(ctx context.Context, gen int64, id uuid.UUID) (*domain.UnitNode, bool, error) {
	key := c.entryKey(gen, id)

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.DebugContext(ctx, "cache miss", slog.String("key", key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("treecache: get %s: %w", key, err)
	}

	var node cachedNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, false, fmt.Errorf("treecache: decode %s: %w", key, err)
	}
	return node.toDomain(), true, nil
}

// Set stores the tree rooted at id under gen.
func (c *Cache) Set(ctx context.Context, gen int64, id uuid.UUID, node *domain.UnitNode) error {
	key := c.entryKey(gen, id)

	raw, err := json.Marshal(fromDomain(node))
	if err != nil {
		return fmt.Errorf("treecache: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("treecache: set %s: %w", key, err)
	}
	return nil
}

// Invalidate bumps the generation, dropping every cached tree at once.
func (c *Cache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, c.generationKey()).Result()
	if err != nil {
		return fmt.Errorf("treecache: bump generation: %w", err)
	}
	c.log.DebugContext(ctx, "cache invalidated", slog.Int64("generation", gen))
	return nil
}

// Ping checks connectivity; used by readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// cachedNode is the JSON shape stored in Redis.
type cachedNode struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	ParentID *uuid.UUID    `json:"parentId"`
	Price    *int64        `json:"price"`
	Date     time.Time     `json:"date"`
	Children []*cachedNode `json:"children"`
}

func fromDomain(n *domain.UnitNode) *cachedNode {
	out := &cachedNode{
		ID:       n.ID,
		Name:     n.Name,
		Type:     string(n.Type),
		ParentID: n.ParentID,
		Price:    n.Price,
		Date:     n.Date,
	}
	if n.Children != nil {
		out.Children = make([]*cachedNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = fromDomain(c)
		}
	}
	return out
}

func (n *cachedNode) toDomain() *domain.UnitNode {
	out := &domain.UnitNode{
		ID:       n.ID,
		Name:     n.Name,
		Type:     domain.UnitType(n.Type),
		ParentID: n.ParentID,
		Price:    n.Price,
		Date:     n.Date.UTC(),
	}
	if n.Children != nil {
		out.Children = make([]*domain.UnitNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.toDomain()
		}
	}
	return out
}
