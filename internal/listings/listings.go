package listings

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"agentlinker/internal/tiers"
)

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusSold    Status = "sold"
	StatusDraft   Status = "draft"
)

// ValidStatus reports whether s is a known listing status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusActive, StatusPending, StatusSold, StatusDraft:
		return true
	}
	return false
}

// Listing is a property an agent shows on their public page.
type Listing struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AgentID     uint            `gorm:"index;not null" json:"agent_id"`
	Title       string          `gorm:"not null" json:"title"`
	Slug        string          `gorm:"uniqueIndex" json:"slug"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Price       decimal.Decimal `gorm:"type:numeric" json:"price"`
	Bedrooms    int             `json:"bedrooms"`
	Bathrooms   decimal.Decimal `gorm:"type:numeric" json:"bathrooms"`
	SquareFeet  int             `json:"square_feet"`
	ImageURL    string          `json:"image_url"`
	Status      Status          `gorm:"index;default:active" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	// ErrListingNotFound is returned when a listing does not exist or belongs to another agent.
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingLimitReached is returned when the agent's tier allows no more listings.
	ErrListingLimitReached = errors.New("listing limit reached for current plan")
)

// Input carries the writable listing fields.
type Input struct {
	Title       string
	Description string
	Address     string
	City        string
	Price       decimal.Decimal
	Bedrooms    int
	Bathrooms   decimal.Decimal
	SquareFeet  int
	ImageURL    string
	Status      Status
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	base := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(base) > 48 {
		base = strings.TrimRight(base[:48], "-")
	}
	if base == "" {
		base = "listing"
	}
	return base + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// countOpen counts listings that occupy a plan slot. Sold listings do not.
func countOpen(db *gorm.DB, agentID uint) (int64, error) {
	var count int64
	err := db.Model(&Listing{}).
		Where("agent_id = ? AND status <> ?", agentID, StatusSold).
		Count(&count).Error
	return count, err
}

// Create adds a listing for agentID after checking the tier limit.
func Create(db *gorm.DB, agentID uint, tier tiers.Tier, input Input) (*Listing, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.New("title cannot be empty")
	}
	if input.Price.IsNegative() {
		return nil, errors.New("price cannot be negative")
	}

	status := input.Status
	if status == "" {
		status = StatusActive
	}

	listing := &Listing{
		AgentID:     agentID,
		Title:       strings.TrimSpace(input.Title),
		Slug:        slugify(input.Title),
		Description: input.Description,
		Address:     input.Address,
		City:        input.City,
		Price:       input.Price,
		Bedrooms:    input.Bedrooms,
		Bathrooms:   input.Bathrooms,
		SquareFeet:  input.SquareFeet,
		ImageURL:    input.ImageURL,
		Status:      status,
	}

	var rejected error
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		count, err := countOpen(tx, agentID)
		if err != nil {
			return err
		}
		if status != StatusSold && !tiers.CanAddListing(tier, int(count)) {
			rejected = ErrListingLimitReached
			return rejected
		}
		return tx.Create(listing).Error
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Get returns the listing id owned by agentID.
func Get(db *gorm.DB, agentID, id uint) (*Listing, error) {
	var listing Listing
	err := db.Where("id = ? AND agent_id = ?", id, agentID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// ListForAgent returns the agent's listings, newest first. An empty status returns all.
func ListForAgent(db *gorm.DB, agentID uint, status Status) ([]Listing, error) {
	query := db.Where("agent_id = ?", agentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var result []Listing
	if err := query.Order("created_at DESC, id DESC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ListActive returns the listings shown on the public page.
func ListActive(db *gorm.DB, agentID uint) ([]Listing, error) {
	return ListForAgent(db, agentID, StatusActive)
}

// CountForAgent counts listings that occupy a plan slot.
func CountForAgent(db *gorm.DB, agentID uint) (int, error) {
	count, err := countOpen(db, agentID)
	return int(count), err
}

// Update is a partial listing update. Nil fields are left unchanged.
type Update struct {
	Title       *string
	Description *string
	Address     *string
	City        *string
	Price       *decimal.Decimal
	Bedrooms    *int
	Bathrooms   *decimal.Decimal
	SquareFeet  *int
	ImageURL    *string
	Status      *Status
}

func (u Update) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Title != nil {
		cols["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Address != nil {
		cols["address"] = *u.Address
	}
	if u.City != nil {
		cols["city"] = *u.City
	}
	if u.Price != nil {
		cols["price"] = *u.Price
	}
	if u.Bedrooms != nil {
		cols["bedrooms"] = *u.Bedrooms
	}
	if u.Bathrooms != nil {
		cols["bathrooms"] = *u.Bathrooms
	}
	if u.SquareFeet != nil {
		cols["square_feet"] = *u.SquareFeet
	}
	if u.ImageURL != nil {
		cols["image_url"] = *u.ImageURL
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	return cols
}

// Apply updates listing id owned by agentID.
// Reopening a sold listing is subject to the tier limit.
func Apply(db *gorm.DB, agentID, id uint, tier tiers.Tier, update Update) (*Listing, error) {
	listing, err := Get(db, agentID, id)
	if err != nil {
		return nil, err
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, errors.New("title cannot be empty")
	}
	if update.Price != nil && update.Price.IsNegative() {
		return nil, errors.New("price cannot be negative")
	}

	cols := update.columns()
	if len(cols) == 0 {
		return listing, nil
	}

	var rejected error
	err = sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		if listing.Status == StatusSold && update.Status != nil && *update.Status != StatusSold {
			count, err := countOpen(tx, agentID)
			if err != nil {
				return err
			}
			if !tiers.CanAddListing(tier, int(count)) {
				rejected = ErrListingLimitReached
				return rejected
			}
		}
		return tx.Model(listing).Updates(cols).Error
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, err
	}
	return Get(db, agentID, id)
}

// Delete removes listing id owned by agentID.
func Delete(db *gorm.DB, agentID, id uint) error {
	var deleted int64
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND agent_id = ?", id, agentID).Delete(&Listing{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if deleted == 0 {
		return ErrListingNotFound
	}
	return nil
}
