package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the access level of a user account. It is stored in the
// users.role column as its upper-case name.
type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleOrganizer
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleCustomer:  "CUSTOMER",
	RoleOrganizer: "ORGANIZER",
	RoleAdmin:     "ADMIN",
}

// ParseRole converts a stored or transmitted role name into a Role.
// Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "UNKNOWN"
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// MarshalText lets roles travel as their names in JSON payloads and JWT claims.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as its name.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return r.String(), nil
}

// Scan reads a role name from the users.role column.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	}
	return fmt.Errorf("cannot scan %T into Role", src)
}

// Capability names an action guarded by role.
type Capability string

const (
	CapBookTickets      Capability = "book_tickets"
	CapManageOwnEvents  Capability = "manage_own_events"
	CapCheckInTickets   Capability = "check_in_tickets"
	CapManageAllEvents  Capability = "manage_all_events"
	CapManageVenues     Capability = "manage_venues"
	CapManagePromotions Capability = "manage_promotions"
	CapManageUsers      Capability = "manage_users"
	CapViewReports      Capability = "view_reports"
	CapViewAllBookings  Capability = "view_all_bookings"
)

var capabilities = map[Role]map[Capability]bool{
	RoleCustomer: {
		CapBookTickets: true,
	},
	RoleOrganizer: {
		CapBookTickets:     true,
		CapManageOwnEvents: true,
		CapCheckInTickets:  true,
	},
	RoleAdmin: {
		CapBookTickets:      true,
		CapManageOwnEvents:  true,
		CapCheckInTickets:   true,
		CapManageAllEvents:  true,
		CapManageVenues:     true,
		CapManagePromotions: true,
		CapManageUsers:      true,
		CapViewReports:      true,
		CapViewAllBookings:  true,
	},
}

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}
