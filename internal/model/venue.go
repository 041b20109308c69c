package model

import "time"

// Venue is a place that hosts events. A venue that still has events
// attached cannot be deleted.
type Venue struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	Phone       string    `json:"phone,omitempty"`
	Description string    `json:"description,omitempty"`
	Capacity    int       `json:"capacity"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
