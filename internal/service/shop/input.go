package shop

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// validateBatch checks every item in isolation and collects all errors.
// Rules that need stored state are checked inside the import transaction.
func validateBatch(batch domain.ImportBatch, maxItems int) error {
	var errs []domain.FieldError

	if batch.UpdateDate.IsZero() {
		errs = append(errs, domain.FieldError{Field: "updateDate", Message: "required"})
	}
	if maxItems > 0 && len(batch.Items) > maxItems {
		errs = append(errs, domain.FieldError{
			Field:   "items",
			Message: fmt.Sprintf("too many (max %d)", maxItems),
		})
	}

	for i, item := range batch.Items {
		if item.ID == uuid.Nil {
			errs = append(errs, domain.FieldError{Field: itemField(i, "id"), Message: "required"})
		}
		if item.Name == "" {
			errs = append(errs, domain.FieldError{Field: itemField(i, "name"), Message: "required"})
		}
		if item.ParentID != nil && *item.ParentID == item.ID {
			errs = append(errs, domain.FieldError{Field: itemField(i, "parentId"), Message: "must not reference the item itself"})
		}

		switch item.Type {
		case domain.UnitTypeCategory:
			if item.Price != nil {
				errs = append(errs, domain.FieldError{Field: itemField(i, "price"), Message: "must be null for a category"})
			}
		case domain.UnitTypeOffer:
			if item.Price == nil {
				errs = append(errs, domain.FieldError{Field: itemField(i, "price"), Message: "required for an offer"})
			} else if *item.Price < 0 {
				errs = append(errs, domain.FieldError{Field: itemField(i, "price"), Message: "must be >= 0"})
			}
		default:
			errs = append(errs, domain.FieldError{
				Field:   itemField(i, "type"),
				Message: fmt.Sprintf("unknown type %q", item.Type),
			})
		}
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// validateRange rejects a statistic interval that ends before it starts.
func validateRange(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return domain.NewValidationError("dateEnd", "must not be before dateStart")
	}
	return nil
}

func itemField(i int, name string) string {
	return fmt.Sprintf("items[%d].%s", i, name)
}
