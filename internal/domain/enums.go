package domain

// UnitType is the immutable kind of a shop unit.
type UnitType string

const (
	UnitTypeCategory UnitType = "CATEGORY"
	UnitTypeOffer    UnitType = "OFFER"
)

func (t UnitType) String() string { return string(t) }

func (t UnitType) IsValid() bool {
	switch t {
	case UnitTypeCategory, UnitTypeOffer:
		return true
	}
	return false
}

// IsCategory reports whether units of this type may have children.
func (t UnitType) IsCategory() bool { return t == UnitTypeCategory }
