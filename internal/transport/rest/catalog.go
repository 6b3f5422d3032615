package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// catalogService defines the minimal interface needed by CatalogHandler.
type catalogService interface {
	ImportUnits(ctx context.Context, batch domain.ImportBatch) error
	DeleteUnit(ctx context.Context, id uuid.UUID) error
	GetNode(ctx context.Context, id uuid.UUID) (*domain.UnitNode, error)
	GetSales(ctx context.Context, date time.Time) ([]domain.UnitStatistic, error)
	GetStatistic(ctx context.Context, id uuid.UUID, start, end *time.Time) ([]domain.UnitStatistic, error)
}

// CatalogHandler serves the catalog REST endpoints.
type CatalogHandler struct {
	svc      catalogService
	validate *validator.Validate
	log      *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(svc catalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.With("handler", "catalog"),
	}
}

// Import handles POST /imports.
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	batch, err := req.toBatch()
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.svc.ImportUnits(r.Context(), batch); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Delete handles DELETE /delete/{id}.
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteUnit(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Node handles GET /nodes/{id}.
func (h *CatalogHandler) Node(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	node, err := h.svc.GetNode(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toNodeResponse(node))
}

// Sales handles GET /sales?date=.
func (h *CatalogHandler) Sales(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseTimestamp("date", r.URL.Query().Get("date"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	items, err := h.svc.GetSales(r.Context(), date)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStatisticResponse(items))
}

// Statistic handles GET /node/{id}/statistic?dateStart=&dateEnd=.
func (h *CatalogHandler) Statistic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	start, err := optionalTimestamp(r, "dateStart")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	end, err := optionalTimestamp(r, "dateEnd")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	items, err := h.svc.GetStatistic(r.Context(), id, start, end)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStatisticResponse(items))
}

func (h *CatalogHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.badRequest(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

func optionalTimestamp(r *http.Request, name string) (*time.Time, error) {
	if !r.URL.Query().Has(name) {
		return nil, nil
	}
	t, err := domain.ParseTimestamp(name, r.URL.Query().Get(name))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *CatalogHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.log.DebugContext(r.Context(), "bad request", slog.String("error", err.Error()))
	writeError(w, http.StatusBadRequest, msgValidationFailed)
}

func (h *CatalogHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.badRequest(w, r, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, domain.ErrConflict):
		h.log.WarnContext(r.Context(), "write conflict", slog.String("error", err.Error()))
		writeError(w, http.StatusConflict, msgConflict)
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// Mount registers the catalog routes on r. writeMW wraps only the mutating
// endpoints.
func (h *CatalogHandler) Mount(r chi.Router, writeMW ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(writeMW...)
		r.Post("/imports", h.Import)
		r.Delete("/delete/{id}", h.Delete)
	})
	r.Get("/nodes/{id}", h.Node)
	r.Get("/sales", h.Sales)
	r.Get("/node/{id}/statistic", h.Statistic)
}
