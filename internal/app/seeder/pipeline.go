// Package seeder replays a catalog dump into the store. A dump is a JSON
// Lines file where every line is one import batch in the POST /imports wire
// format. Batches are applied in updateDate order so that unit histories grow
// monotonically regardless of the order they were dumped in.
package seeder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// maxLineBytes bounds a single batch line.
const maxLineBytes = 64 << 20

// Importer applies one import batch.
type Importer interface {
	ImportUnits(ctx context.Context, batch domain.ImportBatch) error
}

// Result holds the outcome of a pipeline run.
type Result struct {
	Batches  int
	Items    int
	Failed   int
	Duration time.Duration
}

// Pipeline reads, orders and applies catalog batches.
type Pipeline struct {
	log      *slog.Logger
	importer Importer
	cfg      Config
}

// NewPipeline creates a new Pipeline.
func NewPipeline(log *slog.Logger, importer Importer, cfg Config) *Pipeline {
	return &Pipeline{
		log:      log.With("component", "seeder"),
		importer: importer,
		cfg:      cfg,
	}
}

// Run loads cfg.DataPath and applies every batch.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	f, err := os.Open(p.cfg.DataPath)
	if err != nil {
		return Result{}, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	return p.RunReader(ctx, f)
}

// RunReader applies every batch read from r. With DryRun set the batches
// are parsed and counted but never imported.
func (p *Pipeline) RunReader(ctx context.Context, r io.Reader) (Result, error) {
	start := time.Now()

	batches, err := ReadBatches(r)
	if err != nil {
		return Result{}, err
	}

	slices.SortStableFunc(batches, func(a, b domain.ImportBatch) int {
		return a.UpdateDate.Compare(b.UpdateDate)
	})

	var res Result
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Batches++
		res.Items += len(b.Items)
		if p.cfg.DryRun {
			continue
		}

		if err := p.importer.ImportUnits(ctx, b); err != nil {
			res.Failed++
			p.log.Warn("batch rejected",
				slog.Time("update_date", b.UpdateDate),
				slog.Int("items", len(b.Items)),
				slog.String("error", err.Error()),
			)
			if p.cfg.StopOnError {
				res.Duration = time.Since(start)
				return res, fmt.Errorf("batch %s: %w", domain.FormatTimestamp(b.UpdateDate), err)
			}
		}
	}

	res.Duration = time.Since(start)
	p.log.Info("seeding completed",
		slog.Int("batches", res.Batches),
		slog.Int("items", res.Items),
		slog.Int("failed", res.Failed),
		slog.Bool("dry_run", p.cfg.DryRun),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

type rawBatch struct {
	Items      []rawItem `json:"items"`
	UpdateDate string    `json:"updateDate"`
}

type rawItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
	Type     string  `json:"type"`
	Price    *int64  `json:"price"`
}

// ReadBatches parses a JSON Lines dump. Blank lines are skipped; a malformed
// line fails the whole read with its line number.
func ReadBatches(r io.Reader) ([]domain.ImportBatch, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []domain.ImportBatch
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rb rawBatch
		if err := json.Unmarshal(raw, &rb); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b, err := rb.toBatch()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return out, nil
}

func (rb rawBatch) toBatch() (domain.ImportBatch, error) {
	date, err := domain.ParseTimestamp("updateDate", rb.UpdateDate)
	if err != nil {
		return domain.ImportBatch{}, err
	}

	items := make([]domain.ImportItem, len(rb.Items))
	for i, it := range rb.Items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			return domain.ImportBatch{}, domain.NewValidationError(fmt.Sprintf("items[%d].id", i), "invalid uuid")
		}
		var parent *uuid.UUID
		if it.ParentID != nil {
			pid, err := uuid.Parse(*it.ParentID)
			if err != nil {
				return domain.ImportBatch{}, domain.NewValidationError(fmt.Sprintf("items[%d].parentId", i), "invalid uuid")
			}
			parent = &pid
		}
		items[i] = domain.ImportItem{
			ID:       id,
			Type:     domain.UnitType(it.Type),
			ParentID: parent,
			Name:     it.Name,
			Price:    it.Price,
		}
	}
	return domain.ImportBatch{Items: items, UpdateDate: date}, nil
}
