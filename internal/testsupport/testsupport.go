// Package testsupport holds database, fixture and app helpers shared by tests.
package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agentlinker/internal"
	"agentlinker/internal/agents"
	"agentlinker/internal/auth"
	"agentlinker/internal/config"
	"agentlinker/internal/database"
	"agentlinker/internal/listings"
	"agentlinker/internal/tiers"
)

// TestPassword is the password of every agent created by CreateTestAgent.
const TestPassword = "correct-horse-battery"

func init() {
	if os.Getenv("AGENTLINKER_ENV") == "" {
		os.Setenv("AGENTLINKER_ENV", config.Test)
		config.Reset()
	}
}

// testDBCache lets several calls within one test share a database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB returns a migrated in-memory database scoped to the root test.
// Subtests share their parent's database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// cache=shared lets the pool's connections see the same memory database.
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set AGENTLINKER_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestAgent registers a free-tier agent with TestPassword.
func CreateTestAgent(t *testing.T, db *gorm.DB, email, username string) *agents.Agent {
	t.Helper()

	// Minimum cost keeps suites that create many agents fast.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	agent := &agents.Agent{
		Email:             strings.ToLower(email),
		EncryptedPassword: string(hashedPassword),
		Username:          strings.ToLower(username),
		DisplayName:       username,
		Tier:              string(tiers.Free),
	}
	require.NoError(t, db.Create(agent).Error)
	return agent
}

// CreateTestAgentWithTier registers an agent and moves it to tier.
func CreateTestAgentWithTier(t *testing.T, db *gorm.DB, email, username string, tier tiers.Tier) *agents.Agent {
	t.Helper()

	agent := CreateTestAgent(t, db, email, username)
	require.NoError(t, agents.UpdateTier(db, agent.ID, tier))
	agent.Tier = string(tier)
	return agent
}

// CreateTestListing adds an active listing for agent.
func CreateTestListing(t *testing.T, db *gorm.DB, agent *agents.Agent, title string) *listings.Listing {
	t.Helper()

	listing, err := listings.Create(db, agent.ID, agent.CurrentTier(), listings.Input{
		Title:     title,
		City:      "Austin",
		Price:     decimal.NewFromInt(450000),
		Bedrooms:  3,
		Bathrooms: decimal.NewFromFloat(2.5),
	})
	require.NoError(t, err)
	return listing
}

// AuthHeader returns an Authorization header value for agent.
func AuthHeader(t *testing.T, agent *agents.Agent) string {
	t.Helper()

	cfg := config.GetConfig()
	token, err := auth.IssueToken(cfg.JWTSecret, agent.ID, agent.Tier, cfg.GetJWTTTL(), time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin", "none"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
