// Package address keeps a signed-in shopper's saved delivery addresses.
// Orders copy a Postal value at checkout, so editing or deleting a saved
// address never changes an existing order.
package address

import "time"

// Postal is a deliverable address.
type Postal struct {
	Name       string `json:"name" validate:"required,max=200"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	Region     string `json:"region,omitempty" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=2"`
	Phone      string `json:"phone,omitempty" validate:"max=30"`
}

type Address struct {
	ID        int64     `json:"addressId"`
	UserID    string    `json:"userId"`
	Label     string    `json:"label"`
	Postal    Postal    `json:"postal"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
