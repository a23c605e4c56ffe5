// Package subscriptions keeps each agent's plan in sync with the payments
// provider. Checkout happens on the provider side; this package only
// consumes its webhooks and reports usage against the plan limits.
package subscriptions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agentlinker/internal/agents"
	"agentlinker/internal/leads"
	"agentlinker/internal/listings"
	"agentlinker/internal/tiers"
)

// Status mirrors the provider's subscription state.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Webhook event types handled by ApplyWebhook.
const (
	EventCreated = "subscription.created"
	EventUpdated = "subscription.updated"
	EventDeleted = "subscription.deleted"
)

// ExpiryGrace is how long an ended period is honoured before downgrading.
const ExpiryGrace = 72 * time.Hour

// Subscription is the provider-side plan of one agent.
type Subscription struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	AgentID                uint      `gorm:"uniqueIndex;not null" json:"agent_id"`
	Tier                   string    `gorm:"not null" json:"tier"`
	Status                 Status    `gorm:"index;not null" json:"status"`
	ProviderCustomerID     string    `json:"provider_customer_id"`
	ProviderSubscriptionID string    `gorm:"index" json:"provider_subscription_id"`
	CurrentPeriodEnd       time.Time `json:"current_period_end"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	// ErrInvalidSignature is returned when a webhook signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnsupportedEvent is returned for webhook types this service ignores.
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	// ErrMalformedEvent is returned when a webhook payload cannot be used.
	ErrMalformedEvent = errors.New("malformed webhook event")
	// ErrSubscriptionNotFound is returned for agents that never subscribed.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// WebhookData is the subscription object carried by a webhook.
type WebhookData struct {
	AgentID          uint      `json:"agent_id"`
	Tier             string    `json:"tier"`
	Status           Status    `json:"status"`
	CustomerID       string    `json:"customer_id"`
	SubscriptionID   string    `json:"subscription_id"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

// WebhookEvent is a payments provider notification.
type WebhookEvent struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the provider signature header against body.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		return ErrInvalidSignature
	}
	expected := Sign(secret, body)
	given := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(given))) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseWebhook decodes and sanity-checks a webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" || event.Data.AgentID == 0 {
		return nil, fmt.Errorf("%w: type and data.agent_id are required", ErrMalformedEvent)
	}
	return &event, nil
}

// ApplyWebhook records the subscription change and moves the agent to the resulting tier.
func ApplyWebhook(db *gorm.DB, logger *slog.Logger, event *WebhookEvent) (*Subscription, error) {
	data := event.Data

	switch event.Type {
	case EventCreated, EventUpdated:
		if !tiers.Valid(data.Tier) {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrMalformedEvent, data.Tier)
		}
		if data.Status == "" {
			data.Status = StatusActive
		}
	case EventDeleted:
		data.Status = StatusCanceled
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}

	if _, err := agents.FindByID(db, data.AgentID); err != nil {
		return nil, err
	}

	sub := &Subscription{
		AgentID:                data.AgentID,
		Tier:                   string(tiers.Parse(data.Tier)),
		Status:                 data.Status,
		ProviderCustomerID:     data.CustomerID,
		ProviderSubscriptionID: data.SubscriptionID,
		CurrentPeriodEnd:       data.CurrentPeriodEnd.UTC(),
	}
	effective := effectiveTier(sub)

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tier", "status", "provider_customer_id",
				"provider_subscription_id", "current_period_end", "updated_at",
			}),
		}).Create(sub).Error
		if err != nil {
			return err
		}
		return tx.Model(&agents.Agent{}).Where("id = ?", sub.AgentID).Update("tier", string(effective)).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Applied subscription webhook",
		slog.String("event_id", event.ID),
		slog.String("type", event.Type),
		slog.Uint64("agent_id", uint64(sub.AgentID)),
		slog.String("tier", string(effective)))

	return FindByAgent(db, sub.AgentID)
}

func effectiveTier(sub *Subscription) tiers.Tier {
	if sub.Status == StatusCanceled {
		return tiers.Free
	}
	return tiers.Parse(sub.Tier)
}

// FindByAgent returns the agent's subscription.
func FindByAgent(db *gorm.DB, agentID uint) (*Subscription, error) {
	var sub Subscription
	if err := db.Where("agent_id = ?", agentID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// DowngradeExpired cancels subscriptions whose period ended more than
// ExpiryGrace before now and moves their agents to the free tier. On error
// the count covers the agents downgraded before the failing one.
func DowngradeExpired(db *gorm.DB, logger *slog.Logger, now time.Time) (int, error) {
	cutoff := now.Add(-ExpiryGrace).UTC()

	var expired []Subscription
	err := db.Where("status IN ? AND current_period_end > ? AND current_period_end < ?",
		[]Status{StatusActive, StatusPastDue}, time.Time{}, cutoff).
		Order("id").
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	for done, sub := range expired {
		err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			if err := tx.Model(&Subscription{}).Where("id = ?", sub.ID).Update("status", StatusCanceled).Error; err != nil {
				return err
			}
			return tx.Model(&agents.Agent{}).Where("id = ?", sub.AgentID).Update("tier", string(tiers.Free)).Error
		})
		if err != nil {
			return done, fmt.Errorf("failed to downgrade agent %d: %w", sub.AgentID, err)
		}
		logger.Info("Downgraded expired subscription",
			slog.Uint64("agent_id", uint64(sub.AgentID)),
			slog.Time("period_end", sub.CurrentPeriodEnd))
	}

	return len(expired), nil
}

// Allowance is a used/limit pair. Limit is tiers.Unlimited when not enforced.
type Allowance struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Usage reports an agent's consumption against its plan.
type Usage struct {
	Tier           tiers.Tier     `json:"tier"`
	Features       tiers.Features `json:"features"`
	Listings       Allowance      `json:"listings"`
	LeadsThisMonth Allowance      `json:"leads_this_month"`
}

// UsageFor computes the usage of agent at now.
func UsageFor(db *gorm.DB, agent *agents.Agent, now time.Time) (*Usage, error) {
	tier := agent.CurrentTier()
	features := tiers.For(tier)

	listingCount, err := listings.CountForAgent(db, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	leadCount, err := leads.CountThisMonth(db, agent.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}

	return &Usage{
		Tier:           tier,
		Features:       features,
		Listings:       Allowance{Used: listingCount, Limit: features.MaxListings},
		LeadsThisMonth: Allowance{Used: leadCount, Limit: features.MaxLeadsPerMonth},
	}, nil
}
