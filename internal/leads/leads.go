package leads

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"agentlinker/internal/tiers"
	"agentlinker/internal/timeframe"
)

// Status tracks how far a lead has progressed.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusClosed    Status = "closed"
)

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusNew, StatusContacted, StatusQualified, StatusClosed:
		return true
	}
	return false
}

// Lead is a contact-form submission routed to an agent.
type Lead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AgentID   uint      `gorm:"index:idx_leads_agent_created,priority:1;not null" json:"agent_id"`
	ListingID *uint     `gorm:"index" json:"listing_id,omitempty"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Status    Status    `gorm:"default:new" json:"status"`
	CreatedAt time.Time `gorm:"index:idx_leads_agent_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	// ErrLeadNotFound is returned when a lead does not exist or belongs to another agent.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrLeadLimitReached is returned when the agent's monthly lead allowance is used up.
	ErrLeadLimitReached = errors.New("monthly lead limit reached for current plan")
)

// Input is a public contact-form submission.
type Input struct {
	ListingID *uint
	Name      string
	Email     string
	Phone     string
	Message   string
	Source    string
}

// Create stores a new lead for agentID if the tier's monthly allowance permits.
func Create(db *gorm.DB, agentID uint, tier tiers.Tier, input Input, now time.Time) (*Lead, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("name cannot be empty")
	}
	if strings.TrimSpace(input.Email) == "" && strings.TrimSpace(input.Phone) == "" {
		return nil, errors.New("email or phone is required")
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "profile"
	}

	lead := &Lead{
		AgentID:   agentID,
		ListingID: input.ListingID,
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:     strings.TrimSpace(input.Phone),
		Message:   input.Message,
		Source:    source,
		Status:    StatusNew,
		CreatedAt: now.UTC(),
	}

	var rejected error
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		count, err := countSince(tx, agentID, timeframe.StartOfMonth(now))
		if err != nil {
			return err
		}
		if !tiers.CanAcceptLead(tier, int(count)) {
			rejected = ErrLeadLimitReached
			return rejected
		}
		return tx.Create(lead).Error
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func countSince(db *gorm.DB, agentID uint, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&Lead{}).
		Where("agent_id = ? AND created_at >= ?", agentID, since).
		Count(&count).Error
	return count, err
}

// CountThisMonth counts the leads received since the start of now's UTC month.
func CountThisMonth(db *gorm.DB, agentID uint, now time.Time) (int, error) {
	count, err := countSince(db, agentID, timeframe.StartOfMonth(now))
	return int(count), err
}

// ListForAgent returns the agent's leads, newest first. An empty status returns all.
func ListForAgent(db *gorm.DB, agentID uint, status Status) ([]Lead, error) {
	query := db.Where("agent_id = ?", agentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var result []Lead
	if err := query.Order("created_at DESC, id DESC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ListSince returns leads created at or after since, in insertion order.
func ListSince(db *gorm.DB, agentID uint, since time.Time) ([]Lead, error) {
	var result []Lead
	err := db.Where("agent_id = ? AND created_at >= ?", agentID, since.UTC()).
		Order("created_at ASC, id ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves lead id owned by agentID to status.
func UpdateStatus(db *gorm.DB, agentID, id uint, status Status) (*Lead, error) {
	if !ValidStatus(string(status)) {
		return nil, fmt.Errorf("invalid lead status: %s", status)
	}

	var updated int64
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		result := tx.Model(&Lead{}).
			Where("id = ? AND agent_id = ?", id, agentID).
			Update("status", status)
		updated = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, ErrLeadNotFound
	}

	var lead Lead
	if err := db.First(&lead, id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// Delete removes lead id owned by agentID.
func Delete(db *gorm.DB, agentID, id uint) error {
	var deleted int64
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND agent_id = ?", id, agentID).Delete(&Lead{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if deleted == 0 {
		return ErrLeadNotFound
	}
	return nil
}
