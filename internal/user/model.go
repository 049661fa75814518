package user

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Password             string    `json:"-"` // bcrypt hash, never serialized
	Name                 string    `json:"name"`
	Phone                string    `json:"phone,omitempty"`
	Address              string    `json:"address,omitempty"`
	Role                 string    `json:"role"`
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ProfileUpdate carries the fields a user may edit on their own profile.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// AdminUpdate carries the fields an admin may edit on any user.
type AdminUpdate struct {
	Role    *string
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}
