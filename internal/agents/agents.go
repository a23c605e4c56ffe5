package agents

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"agentlinker/internal/tiers"
)

// Agent is a tenant: one real-estate agent account and its public profile.
type Agent struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Email               string    `gorm:"uniqueIndex;not null" json:"email"`
	EncryptedPassword   string    `json:"-"`
	Username            string    `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName         string    `json:"display_name"`
	Phone               string    `json:"phone"`
	Bio                 string    `json:"bio"`
	AvatarURL           string    `json:"avatar_url"`
	BrandColor          string    `json:"brand_color"`
	City                string    `json:"city"`
	Region              string    `json:"region"`
	CountryCode         string    `gorm:"size:3" json:"country_code"`
	ResponseTimeMinutes int       `json:"response_time_minutes"`
	Tier                string    `gorm:"default:free;index" json:"tier"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CurrentTier returns the parsed subscription tier.
func (a *Agent) CurrentTier() tiers.Tier {
	return tiers.Parse(a.Tier)
}

// ErrAgentExists is returned when the email or username is already taken.
var ErrAgentExists = errors.New("agent already exists")

// ErrAgentNotFound is returned when an agent lookup fails.
var ErrAgentNotFound = gorm.ErrRecordNotFound

// ErrInvalidCredentials is returned when email and password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// CreateInput holds the fields accepted at signup.
type CreateInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
	Tier        tiers.Tier
}

// Create registers a new agent with a hashed password.
func Create(db *gorm.DB, input CreateInput) (*Agent, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))

	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	if input.Password == "" {
		return nil, errors.New("password cannot be empty")
	}

	var count int64
	if err := db.Model(&Agent{}).Where("email = ? OR username = ?", email, username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAgentExists
	}

	hashedPassword, err := crypto.GeneratePasswordHash(input.Password)
	if err != nil {
		return nil, err
	}

	tier := input.Tier
	if tier == "" {
		tier = tiers.Free
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}

	agent := &Agent{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
		Username:          username,
		DisplayName:       displayName,
		Tier:              string(tier),
	}

	err = sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		return tx.Create(agent).Error
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// Authenticate returns the agent whose email and password match.
func Authenticate(db *gorm.DB, email, password string) (*Agent, error) {
	agent, err := FindByEmail(db, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.VerifyPassword(agent.EncryptedPassword, password) {
		return nil, ErrInvalidCredentials
	}
	return agent, nil
}

// FindByEmail retrieves an agent by email.
func FindByEmail(db *gorm.DB, email string) (*Agent, error) {
	var agent Agent
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// FindByID retrieves an agent by ID.
func FindByID(db *gorm.DB, id uint) (*Agent, error) {
	var agent Agent
	if err := db.Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// FindByUsername retrieves an agent by public username.
func FindByUsername(db *gorm.DB, username string) (*Agent, error) {
	var agent Agent
	if err := db.Where("username = ?", strings.ToLower(strings.TrimSpace(username))).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayName         *string
	Phone               *string
	Bio                 *string
	AvatarURL           *string
	BrandColor          *string
	City                *string
	Region              *string
	CountryCode         *string
	ResponseTimeMinutes *int
}

func (p ProfileUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = strings.TrimSpace(*v)
		}
	}
	set("display_name", p.DisplayName)
	set("phone", p.Phone)
	set("bio", p.Bio)
	set("avatar_url", p.AvatarURL)
	set("brand_color", p.BrandColor)
	set("city", p.City)
	set("region", p.Region)
	if p.CountryCode != nil {
		cols["country_code"] = strings.ToUpper(strings.TrimSpace(*p.CountryCode))
	}
	if p.ResponseTimeMinutes != nil {
		cols["response_time_minutes"] = *p.ResponseTimeMinutes
	}
	return cols
}

// UpdateProfile applies update to the agent and returns the stored result.
func UpdateProfile(db *gorm.DB, id uint, update ProfileUpdate) (*Agent, error) {
	agent, err := FindByID(db, id)
	if err != nil {
		return nil, err
	}

	cols := update.columns()
	if len(cols) == 0 {
		return agent, nil
	}

	err = sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		return tx.Model(agent).Updates(cols).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return FindByID(db, id)
}

// ChangePassword updates an agent's password given their email.
func ChangePassword(db *gorm.DB, email, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	agent, err := FindByEmail(db, email)
	if err != nil {
		return err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	return sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		return tx.Model(agent).Update("encrypted_password", string(hashedPassword)).Error
	})
}

// UpdateTier switches the agent to tier.
func UpdateTier(db *gorm.DB, id uint, tier tiers.Tier) error {
	var updated int64
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		result := tx.Model(&Agent{}).Where("id = ?", id).Update("tier", string(tier))
		updated = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrAgentNotFound
	}
	return nil
}
