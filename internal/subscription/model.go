package subscription

import (
	"time"

	"carflex/internal/pack"
	"carflex/internal/user"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCancelled = "cancelled"
)

const (
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type Subscription struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	PackID          string     `json:"packId"`
	Status          string     `json:"status"`
	BillingPeriod   string     `json:"billingPeriod"`
	Vehicle         string     `json:"vehicle,omitempty"`
	MileageUsed     int        `json:"mileageUsed"`
	StartDate       time.Time  `json:"startDate"`
	NextBillingDate time.Time  `json:"nextBillingDate"`
	EndDate         *time.Time `json:"endDate"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// WithPack is a subscription joined with its pack, as the dashboard shows it.
type WithPack struct {
	Subscription
	Pack pack.Pack `json:"pack"`
}

// WithUserAndPack is the admin listing row.
type WithUserAndPack struct {
	Subscription
	User user.User `json:"user"`
	Pack pack.Pack `json:"pack"`
}

// Update carries the mutable subscription fields. Nil means "leave unchanged".
type Update struct {
	Status          *string
	Vehicle         *string
	MileageUsed     *int
	NextBillingDate *time.Time
	EndDate         *time.Time
}

// ValidPeriod reports whether p is one of the two supported billing periods.
func ValidPeriod(p string) bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// NextBilling advances t by exactly one billing period using calendar
// arithmetic, so a yearly plan billed 2025-01-15 renews 2026-01-15.
func NextBilling(t time.Time, period string) time.Time {
	if period == PeriodYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}
