package models

import "time"

const (
	PlanFree  = "free"
	PlanBasic = "basic"
	PlanPro   = "pro"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

// PlanListingLimits caps the services a user can keep pending, published or
// inactive. Zero means unlimited.
var PlanListingLimits = map[string]int{
	PlanFree:  3,
	PlanBasic: 15,
	PlanPro:   0,
}

type Subscription struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Usable reports whether the paid plan still applies at now. Canceled
// subscriptions stay usable until the period ends.
func (s Subscription) Usable(now time.Time) bool {
	if s.Plan == PlanFree || s.Status == SubscriptionExpired {
		return false
	}
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.After(now)
}

// EffectivePlan returns the plan whose limits apply at now.
func (s Subscription) EffectivePlan(now time.Time) string {
	if s.Usable(now) {
		return s.Plan
	}
	return PlanFree
}

type SubscriptionSummary struct {
	Subscription   Subscription `json:"subscription"`
	EffectivePlan  string       `json:"effective_plan"`
	ListingLimit   int          `json:"listing_limit"`
	ActiveListings int          `json:"active_listings"`
}

type ActivateSubscriptionRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Plan   string `json:"plan" validate:"required,oneof=basic pro"`
	Months int    `json:"months" validate:"required,min=1,max=24"`
}
