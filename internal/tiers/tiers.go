// Package tiers is the single source of truth for what each subscription
// level includes. Handlers, stores and the billing webhook all read limits
// from here instead of re-deriving them.
package tiers

import "strings"

// Tier is a subscription level.
type Tier string

const (
	Free     Tier = "free"
	Pro      Tier = "pro"
	Business Tier = "business"
)

// Unlimited marks a limit that is not enforced.
const Unlimited = -1

// Feature names accepted by Allows.
const (
	FeatureBookings       = "bookings"
	FeatureCustomBranding = "custom_branding"
	FeatureRemoveBranding = "remove_branding"
	FeatureNotifications  = "notifications"
)

// Features lists the limits and switches attached to a tier.
type Features struct {
	Name              string `json:"name"`
	PriceMonthlyCents int    `json:"price_monthly_cents"`
	MaxListings       int    `json:"max_listings"`
	MaxLeadsPerMonth  int    `json:"max_leads_per_month"`
	Bookings          bool   `json:"bookings"`
	CustomBranding    bool   `json:"custom_branding"`
	RemoveBranding    bool   `json:"remove_branding"`
	Notifications     bool   `json:"notifications"`
}

// Plan pairs a tier with its features for the pricing endpoint.
type Plan struct {
	Tier     Tier     `json:"tier"`
	Features Features `json:"features"`
}

var table = map[Tier]Features{
	Free: {
		Name:              "Free",
		PriceMonthlyCents: 0,
		MaxListings:       3,
		MaxLeadsPerMonth:  25,
		Bookings:          false,
		CustomBranding:    false,
		RemoveBranding:    false,
		Notifications:     true,
	},
	Pro: {
		Name:              "Pro",
		PriceMonthlyCents: 1900,
		MaxListings:       25,
		MaxLeadsPerMonth:  500,
		Bookings:          true,
		CustomBranding:    true,
		RemoveBranding:    false,
		Notifications:     true,
	},
	Business: {
		Name:              "Business",
		PriceMonthlyCents: 4900,
		MaxListings:       Unlimited,
		MaxLeadsPerMonth:  Unlimited,
		Bookings:          true,
		CustomBranding:    true,
		RemoveBranding:    true,
		Notifications:     true,
	},
}

var order = []Tier{Free, Pro, Business}

// Parse normalises a stored or submitted tier name. Unknown values fall back to Free.
func Parse(raw string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := table[t]; ok {
		return t
	}
	return Free
}

// Valid reports whether raw names a known tier.
func Valid(raw string) bool {
	_, ok := table[Tier(strings.ToLower(strings.TrimSpace(raw)))]
	return ok
}

// For returns the features of a tier.
func For(t Tier) Features {
	if f, ok := table[t]; ok {
		return f
	}
	return table[Free]
}

// All returns every plan, cheapest first.
func All() []Plan {
	plans := make([]Plan, 0, len(order))
	for _, t := range order {
		plans = append(plans, Plan{Tier: t, Features: table[t]})
	}
	return plans
}

// Allows reports whether a tier includes a boolean feature.
func Allows(t Tier, feature string) bool {
	f := For(t)
	switch feature {
	case FeatureBookings:
		return f.Bookings
	case FeatureCustomBranding:
		return f.CustomBranding
	case FeatureRemoveBranding:
		return f.RemoveBranding
	case FeatureNotifications:
		return f.Notifications
	}
	return false
}

// CanAddListing reports whether an agent with current listings may add one more.
func CanAddListing(t Tier, current int) bool {
	return withinLimit(For(t).MaxListings, current)
}

// CanAcceptLead reports whether another lead fits in this month's allowance.
func CanAcceptLead(t Tier, thisMonth int) bool {
	return withinLimit(For(t).MaxLeadsPerMonth, thisMonth)
}

func withinLimit(limit, current int) bool {
	if limit == Unlimited {
		return true
	}
	return current < limit
}
