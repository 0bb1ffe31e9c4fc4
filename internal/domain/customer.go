package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Customer is the contact record kept per email address.
type Customer struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CustomerDetails is the contact block captured by the checkout form.
type CustomerDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

// Normalize trims every field and lower-cases the email.
func (d CustomerDetails) Normalize() CustomerDetails {
	return CustomerDetails{
		Name:    strings.TrimSpace(d.Name),
		Email:   strings.ToLower(strings.TrimSpace(d.Email)),
		Phone:   strings.TrimSpace(d.Phone),
		Address: strings.TrimSpace(d.Address),
		Notes:   strings.TrimSpace(d.Notes),
	}
}

// Validate checks required contact fields. Phone is required for checkout
// but optional for orders entered by staff.
func (d CustomerDetails) Validate(requirePhone bool) error {
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Email == "" {
		missing = append(missing, "email")
	}
	if requirePhone && d.Phone == "" {
		missing = append(missing, "phone")
	}
	if d.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	if !ValidEmail(d.Email) {
		return Validation("invalid email address")
	}
	return nil
}

// ValidEmail reports whether s is a bare email address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
