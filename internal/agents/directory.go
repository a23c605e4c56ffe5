package agents

import (
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

// Directory answers "does this agent exist" for the public tracking path
// without hitting the database on every beacon.
type Directory struct {
	known *cache.Cache[uint, bool]
}

// NewDirectory creates a directory backed by db. Only positive lookups are cached.
func NewDirectory(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *Directory {
	fetch := func(id uint) (bool, error) {
		var count int64
		if err := db.Model(&Agent{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrAgentNotFound
		}
		return true, nil
	}
	return &Directory{known: cache.NewCache[uint, bool](logger, ttl, fetch)}
}

// Exists reports whether an agent with id exists.
func (d *Directory) Exists(id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	ok, err := d.known.Get(id)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// Reset drops every cached lookup.
func (d *Directory) Reset() {
	d.known.Clear()
}
