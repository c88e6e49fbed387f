package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the owner of the workspace. Exactly one plan is active at a time
// and plan changes take effect immediately.
type User struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Plan             PlanID    `json:"plan"`
	StripeCustomerID string    `json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// IsPaid reports whether the user is on anything other than the free plan.
func (u *User) IsPaid() bool {
	return u.Plan != PlanStarter && u.Plan.IsValid()
}
