package domain

// Service is a purchasable catalog entry. Prices are integer cents.
type Service struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	DurationLabel  string `json:"duration"`
}
