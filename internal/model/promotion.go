package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promotion is a discount code. CurrentUses never exceeds MaxUses when a
// cap is configured.
type Promotion struct {
	ID                 uint64           `json:"id"`
	Code               string           `json:"code"`
	Description        string           `json:"description,omitempty"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
	StartDate          time.Time        `json:"start_date"`
	EndDate            time.Time        `json:"end_date"`
	MaxUses            *int             `json:"max_uses,omitempty"`
	CurrentUses        int              `json:"current_uses"`
	IsActive           bool             `json:"is_active"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Usable reports whether the code may be applied at now: it must be
// active, inside its date window and under its usage cap.
func (p Promotion) Usable(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	return true
}
