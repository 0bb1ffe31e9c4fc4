package domain

import "time"

type Preferences struct {
	Notifications bool `json:"notifications"`
	Marketing     bool `json:"marketing"`
}

// VisitorProfile is the durable record of a returning browser before any login.
// ID never changes once generated.
type VisitorProfile struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Address     string      `json:"address,omitempty"`
	CartItems   LineItems   `json:"cartItems"`
	LastVisit   time.Time   `json:"lastVisit"`
	VisitCount  int         `json:"visitCount"`
	Preferences Preferences `json:"preferences"`
}
