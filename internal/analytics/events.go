// Package analytics stores agent page events and turns them into performance reports.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"agentlinker/internal/metrics"
)

type EventType string

const (
	EventPageView     EventType = "page_view"
	EventLinkClick    EventType = "link_click"
	EventListingView  EventType = "listing_view"
	EventBookingClick EventType = "booking_click"
	EventLeadForm     EventType = "lead_form"
	EventView         EventType = "view"
)

// EventTypes lists every accepted event type.
var EventTypes = []EventType{
	EventPageView,
	EventLinkClick,
	EventListingView,
	EventBookingClick,
	EventLeadForm,
	EventView,
}

func ValidEventType(s string) bool {
	for _, et := range EventTypes {
		if string(et) == s {
			return true
		}
	}
	return false
}

var ErrUnknownEventType = errors.New("unknown event type")

// Event is a single tracked interaction on an agent's public pages.
// The owning agent is exposed as user_id on the wire.
type Event struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AgentID   uint              `gorm:"not null;index:idx_events_agent_created,priority:1" json:"user_id"`
	EventType EventType         `gorm:"size:32;not null;index" json:"event_type"`
	ListingID *uint             `gorm:"index" json:"listing_id"`
	LeadID    *uint             `json:"lead_id"`
	BookingID *uint             `json:"booking_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	IPAddress string            `gorm:"size:64" json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	Referrer  string            `json:"referrer"`
	CreatedAt time.Time         `gorm:"not null;index:idx_events_agent_created,priority:2" json:"created_at"`
}

type EventInput struct {
	AgentID   uint
	EventType string
	ListingID *uint
	LeadID    *uint
	BookingID *uint
	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
	Referrer  string
}

// RecordEvent stores an event for the given agent. Missing metadata is stored as an empty object.
func RecordEvent(db *gorm.DB, logger *slog.Logger, input EventInput, now time.Time) (*Event, error) {
	return record(db, logger, input, now, "api")
}

func record(db *gorm.DB, logger *slog.Logger, input EventInput, now time.Time, path string) (*Event, error) {
	if !ValidEventType(input.EventType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, input.EventType)
	}

	metadata := datatypes.JSONMap{}
	for k, v := range input.Metadata {
		metadata[k] = v
	}

	event := &Event{
		AgentID:   input.AgentID,
		EventType: EventType(input.EventType),
		ListingID: input.ListingID,
		LeadID:    input.LeadID,
		BookingID: input.BookingID,
		Metadata:  metadata,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Referrer:  input.Referrer,
		CreatedAt: now.UTC(),
	}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record event: %w", err)
	}

	metrics.EventsRecorded.WithLabelValues(string(event.EventType), path).Inc()
	return event, nil
}

type TrackInput struct {
	AgentID   uint
	EventType string
	ListingID *uint
	Source    string
	Device    string
	IPAddress string
	UserAgent string
	Referrer  string
}

// TrackPublic records an anonymous beacon from a public profile page.
// The metadata holds the reported source, "unknown" when absent, and the
// visitor's device class when known.
func TrackPublic(db *gorm.DB, logger *slog.Logger, input TrackInput, now time.Time) (*Event, error) {
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "unknown"
	}
	metadata := map[string]interface{}{"source": source}
	if input.Device != "" {
		metadata["device"] = input.Device
	}
	return record(db, logger, EventInput{
		AgentID:   input.AgentID,
		EventType: input.EventType,
		ListingID: input.ListingID,
		Metadata:  metadata,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Referrer:  input.Referrer,
	}, now, "track")
}

// ListEventsSince returns the agent's events created at or after since, newest first.
func ListEventsSince(ctx context.Context, db *gorm.DB, agentID uint, since time.Time) ([]Event, error) {
	var events []Event
	err := db.WithContext(ctx).
		Where("agent_id = ? AND created_at >= ?", agentID, since.UTC()).
		Order("created_at DESC").
		Order("id DESC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// PurgeOlderThan deletes events created before cutoff in batches and returns the number removed.
func PurgeOlderThan(db *gorm.DB, logger *slog.Logger, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var total int64
	for {
		var affected int64
		err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			ids := tx.Model(&Event{}).Select("id").Where("created_at < ?", cutoff.UTC()).Limit(batchSize)
			result := tx.Where("id IN (?)", ids).Delete(&Event{})
			affected = result.RowsAffected
			return result.Error
		})
		if err != nil {
			return total, fmt.Errorf("failed to purge events: %w", err)
		}

		total += affected
		if affected < int64(batchSize) {
			break
		}
		logger.Debug("Purged event batch", slog.Int64("batch_size", affected), slog.Int64("total", total))
	}

	return total, nil
}
