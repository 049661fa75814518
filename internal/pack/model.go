package pack

import "time"

// Pack is a purchasable subscription plan. Prices are fixed two-decimal
// strings ("499.00") backed by NUMERIC columns; they never pass through floats.
type Pack struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Subtitle     string    `json:"subtitle"`
	PriceMonthly string    `json:"priceMonthly"`
	PriceYearly  string    `json:"priceYearly"`
	MileageLimit *int      `json:"mileageLimit"` // nil = unlimited
	Features     []string  `json:"features"`
	IsPopular    bool      `json:"isPopular"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Update carries the fields an admin may edit on a pack.
type Update struct {
	Name         *string
	Subtitle     *string
	PriceMonthly *string
	PriceYearly  *string
	MileageLimit *int
	Features     []string
	IsPopular    *bool
}
