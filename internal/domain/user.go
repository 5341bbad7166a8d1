package domain

import "time"

type User struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Name     string `json:"name"`

	// WalletAddress identifies the user on the payment ledger and in
	// the booking/reputation records.
	WalletAddress string `json:"wallet_address"`

	Role string `json:"role"` // "user" or "admin"

	// Expertise tags are free-form and ordered; serialization happens
	// at the storage boundary only.
	Expertise []string `json:"expertise,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
