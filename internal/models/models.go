package models

import (
	"time"
)

// JewelryTypes lists the pieces the shop takes custom orders for, in the order
// the order form presents them.
var JewelryTypes = []string{"Ring", "Necklace", "Bracelet", "Earrings", "Other"}

// IsJewelryType reports whether t is one of JewelryTypes. Matching is exact.
func IsJewelryType(t string) bool {
	for _, jt := range JewelryTypes {
		if jt == t {
			return true
		}
	}
	return false
}

type Order struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	JewelryType string    `json:"jewelryType"`
	Description string    `json:"description"`
	ImagePath   *string   `json:"imagePath"` // nil when the customer sent no picture
	SubmittedAt time.Time `json:"submittedAt"`
}

// OrderInput is the customer supplied part of an Order. The store assigns
// ID and SubmittedAt.
type OrderInput struct {
	FullName    string  `json:"fullName" validate:"required,min=2"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required,min=7"`
	JewelryType string  `json:"jewelryType" validate:"required,jewelrytype"`
	Description string  `json:"description" validate:"required,min=10"`
	ImagePath   *string `json:"imagePath,omitempty" validate:"-"`
}

// OrderStats summarises the order book for the admin dashboard.
type OrderStats struct {
	TotalOrders  int            `json:"totalOrders"`
	WithImage    int            `json:"withImage"`
	OrdersByType map[string]int `json:"ordersByType"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // bcrypt hash unless the plain scheme is configured
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
