package bookings

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"agentlinker/internal/tiers"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Booking is a requested showing or consultation.
type Booking struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AgentID          uint      `gorm:"index:idx_bookings_agent_created,priority:1;not null" json:"agent_id"`
	ListingID        *uint     `gorm:"index" json:"listing_id,omitempty"`
	Name             string    `gorm:"not null" json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	Notes            string    `json:"notes"`
	Status           Status    `gorm:"default:pending;index" json:"status"`
	ConfirmationCode string    `gorm:"uniqueIndex" json:"confirmation_code"`
	CreatedAt        time.Time `gorm:"index:idx_bookings_agent_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	// ErrBookingNotFound is returned when a booking does not exist or belongs to another agent.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingsNotIncluded is returned when the agent's tier has no scheduling.
	ErrBookingsNotIncluded = errors.New("bookings are not included in current plan")
	// ErrInvalidSchedule is returned for a showing time that is not in the future.
	ErrInvalidSchedule = errors.New("scheduled time must be in the future")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid booking status transition")
)

// Input is a public booking request.
type Input struct {
	ListingID   *uint
	Name        string
	Email       string
	Phone       string
	ScheduledAt time.Time
	Notes       string
}

// Create stores a pending booking for agentID.
func Create(db *gorm.DB, agentID uint, tier tiers.Tier, input Input, now time.Time) (*Booking, error) {
	if !tiers.Allows(tier, tiers.FeatureBookings) {
		return nil, ErrBookingsNotIncluded
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("name cannot be empty")
	}
	if !input.ScheduledAt.After(now) {
		return nil, ErrInvalidSchedule
	}

	booking := &Booking{
		AgentID:          agentID,
		ListingID:        input.ListingID,
		Name:             strings.TrimSpace(input.Name),
		Email:            strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:            strings.TrimSpace(input.Phone),
		ScheduledAt:      input.ScheduledAt.UTC(),
		Notes:            input.Notes,
		Status:           StatusPending,
		ConfirmationCode: strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10],
		CreatedAt:        now.UTC(),
	}

	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ListForAgent returns the agent's bookings ordered by scheduled time. An empty status returns all.
func ListForAgent(db *gorm.DB, agentID uint, status Status) ([]Booking, error) {
	query := db.Where("agent_id = ?", agentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var result []Booking
	if err := query.Order("scheduled_at ASC, id ASC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ListSince returns bookings created at or after since, in insertion order.
func ListSince(db *gorm.DB, agentID uint, since time.Time) ([]Booking, error) {
	var result []Booking
	err := db.Where("agent_id = ? AND created_at >= ?", agentID, since.UTC()).
		Order("created_at ASC, id ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns booking id owned by agentID.
func Get(db *gorm.DB, agentID, id uint) (*Booking, error) {
	var booking Booking
	if err := db.Where("id = ? AND agent_id = ?", id, agentID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// FindByConfirmationCode looks a booking up by the code given to the visitor.
func FindByConfirmationCode(db *gorm.DB, code string) (*Booking, error) {
	var booking Booking
	err := db.Where("confirmation_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// UpdateStatus moves booking id owned by agentID to status.
func UpdateStatus(db *gorm.DB, agentID, id uint, status Status) (*Booking, error) {
	if !ValidStatus(string(status)) {
		return nil, fmt.Errorf("invalid booking status: %s", status)
	}

	booking, err := Get(db, agentID, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == status {
		return booking, nil
	}
	if !CanTransition(booking.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, status)
	}

	err = sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		return tx.Model(booking).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	booking.Status = status
	return booking, nil
}
