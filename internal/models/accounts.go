package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Customer struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Seller struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Image      string    `json:"image,omitempty"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	IsBlocked  bool      `json:"is_blocked"`
	CreatedAt  time.Time `json:"created_at"`
}

// CanSell reports whether the seller may use the seller dashboard.
func (s *Seller) CanSell() bool {
	return s.IsActive && !s.IsBlocked
}

// Profile is the account view returned to the owner. Exactly one of
// Customer and Seller is set.
type Profile struct {
	User     User      `json:"user"`
	Role     string    `json:"role"`
	Customer *Customer `json:"customer,omitempty"`
	Seller   *Seller   `json:"seller,omitempty"`
}
