package model

import "time"

// User represents an account as stored in the `users` table.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique, lower-cased email address used to log in.
//  PasswordHash  – bcrypt hash, never serialised.
//  FirstName     – given name shown on tickets and reports.
//  LastName      – family name.
//  Address       – optional postal address.
//  City          – optional city.
//  Phone         – optional phone number.
//  DateOfBirth   – optional birth date.
//  Role          – CUSTOMER, ORGANIZER or ADMIN.
//  LoyaltyPoints – redeemable balance; 10 points are worth one currency unit.
//  IsActive      – false when an administrator has locked the account.
//  CreatedAt     – registration timestamp.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Address       string     `json:"address,omitempty"`
	City          string     `json:"city,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Role          Role       `json:"role"`
	LoyaltyPoints int        `json:"loyalty_points"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FullName joins first and last name the way it is printed on tickets.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
