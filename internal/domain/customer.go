package domain

import "time"

// User is the account owning carts and orders.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Address is a shipping address owned by a user.
type Address struct {
	ID         string
	UserID     string
	Street     string
	Number     string
	Complement string
	City       string
	State      string
	PostalCode string
	Country    string
}
