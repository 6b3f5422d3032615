package rest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

type importRequest struct {
	Items      []importItemRequest `json:"items"      validate:"required,dive"`
	UpdateDate string              `json:"updateDate" validate:"required"`
}

type importItemRequest struct {
	ID       string  `json:"id"       validate:"required,uuid"`
	Name     string  `json:"name"     validate:"required"`
	ParentID *string `json:"parentId" validate:"omitempty,uuid"`
	Type     string  `json:"type"     validate:"required,oneof=CATEGORY OFFER"`
	Price    *int64  `json:"price"    validate:"omitempty,gte=0"`
}

// toBatch converts a validated request into the domain batch.
func (r importRequest) toBatch() (domain.ImportBatch, error) {
	date, err := domain.ParseTimestamp("updateDate", r.UpdateDate)
	if err != nil {
		return domain.ImportBatch{}, err
	}

	items := make([]domain.ImportItem, len(r.Items))
	for i, it := range r.Items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			return domain.ImportBatch{}, domain.NewValidationError(fmt.Sprintf("items[%d].id", i), "invalid uuid")
		}
		var parent *uuid.UUID
		if it.ParentID != nil {
			p, err := uuid.Parse(*it.ParentID)
			if err != nil {
				return domain.ImportBatch{}, domain.NewValidationError(fmt.Sprintf("items[%d].parentId", i), "invalid uuid")
			}
			parent = &p
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

type nodeResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	ParentID *string        `json:"parentId"`
	Price    *int64         `json:"price"`
	Date     string         `json:"date"`
	Children []nodeResponse `json:"children"`
}

type statisticItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	ParentID *string `json:"parentId"`
	Price    *int64  `json:"price"`
	Date     string  `json:"date"`
}

type statisticResponse struct {
	Items []statisticItem `json:"items"`
}

func toNodeResponse(n *domain.UnitNode) nodeResponse {
	resp := nodeResponse{
		ID:       n.ID.String(),
		Name:     n.Name,
		Type:     n.Type.String(),
		ParentID: uuidString(n.ParentID),
		Price:    n.Price,
		Date:     domain.FormatTimestamp(n.Date),
	}
	if n.Children != nil {
		resp.Children = make([]nodeResponse, len(n.Children))
		for i, c := range n.Children {
			resp.Children[i] = toNodeResponse(c)
		}
	}
	return resp
}

func toStatisticResponse(items []domain.UnitStatistic) statisticResponse {
	resp := statisticResponse{Items: make([]statisticItem, len(items))}
	for i, it := range items {
		resp.Items[i] = statisticItem{
			ID:       it.ID.String(),
			Name:     it.Name,
			Type:     it.Type.String(),
			ParentID: uuidString(it.ParentID),
			Price:    it.Price,
			Date:     domain.FormatTimestamp(it.Date),
		}
	}
	return resp
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
