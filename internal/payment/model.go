package payment

import (
	"time"

	"carflex/internal/user"
)

const StatusSucceeded = "succeeded"

// Payment is an immutable record of one successful charge.
type Payment struct {
	ID                    string    `json:"id"`
	SubscriptionID        string    `json:"subscriptionId"`
	UserID                string    `json:"userId"`
	Amount                string    `json:"amount"` // fixed two-decimal string
	Status                string    `json:"status"`
	StripePaymentIntentID string    `json:"stripePaymentIntentId,omitempty"`
	InvoiceNumber         string    `json:"invoiceNumber"`
	PaymentDate           time.Time `json:"paymentDate"`
	CreatedAt             time.Time `json:"createdAt"`
}

// WithUser is the admin listing row.
type WithUser struct {
	Payment
	User user.User `json:"user"`
}
