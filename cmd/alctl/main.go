// main.go - Admin control tool for AgentLinker
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
	"gorm.io/gorm"

	"agentlinker/internal"
	"agentlinker/internal/agents"
	"agentlinker/internal/auth"
	"agentlinker/internal/config"
	"agentlinker/internal/jobs"
	"agentlinker/internal/seeder"
	"agentlinker/internal/tiers"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&CreateAgentCommand{},
	&ChangePasswordCommand{},
	&SetTierCommand{},
	&IssueTokenCommand{},
	&MigrateCommand{},
	&RunJobsCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

func connection(app *internal.Application) (*gorm.DB, error) {
	if app == nil {
		return nil, fmt.Errorf("app initialization failed, cannot connect to database")
	}
	return app.DBManager.GetConnection(), nil
}

// CreateAgentCommand registers an agent account.
type CreateAgentCommand struct{}

func (c *CreateAgentCommand) Name() string        { return "create-agent" }
func (c *CreateAgentCommand) Description() string { return "Creates an agent account" }

func (c *CreateAgentCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	tier := fs.String("tier", string(tiers.Free), "subscription tier (free, pro, business)")
	displayName := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: %s [-tier t] [-name n] <email> <username> [password]", c.Name())
	}
	if !tiers.Valid(*tier) {
		return fmt.Errorf("unknown tier %q", *tier)
	}

	password := fs.Arg(2)
	if password == "" {
		var err error
		if password, err = promptPassword(bufio.NewReader(os.Stdin)); err != nil {
			return err
		}
	}

	db, err := connection(app)
	if err != nil {
		return err
	}

	agent, err := agents.Create(db, agents.CreateInput{
		Email:       fs.Arg(0),
		Username:    fs.Arg(1),
		Password:    password,
		DisplayName: *displayName,
		Tier:        tiers.Parse(*tier),
	})
	if err != nil {
		if errors.Is(err, agents.ErrAgentExists) {
			log.Printf("Agent %s already exists", fs.Arg(0))
			return nil
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	fmt.Printf("Created agent %d (%s)\n", agent.ID, agent.Username)
	return nil
}

// promptPassword asks for a password twice. Input is hidden when stdin is a terminal.
func promptPassword(reader *bufio.Reader) (string, error) {
	read := func(prompt string) (string, error) {
		fmt.Print(prompt)
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			raw, err := term.ReadPassword(fd)
			fmt.Println()
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return strings.TrimSpace(string(raw)), nil
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	password, err := read("Enter password (minimum 8 characters): ")
	if err != nil {
		return "", err
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// ChangePasswordCommand updates the password of an existing agent.
type ChangePasswordCommand struct{}

func (c *ChangePasswordCommand) Name() string { return "change-password" }
func (c *ChangePasswordCommand) Description() string {
	return "Changes the password of an existing agent"
}

func (c *ChangePasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) >= 1 {
		email = args[0]
	} else {
		fmt.Print("Enter agent email: ")
		input, _ := reader.ReadString('\n')
		email = strings.TrimSpace(input)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	db, err := connection(app)
	if err != nil {
		return err
	}
	if _, err := agents.FindByEmail(db, email); err != nil {
		return fmt.Errorf("agent lookup failed: %w", err)
	}

	var newPassword string
	if len(args) >= 2 {
		newPassword = args[1]
	} else {
		newPassword, err = promptPassword(reader)
		if err != nil {
			return err
		}
	}

	if err := agents.ChangePassword(db, email, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Println("Password updated successfully")
	return nil
}

// SetTierCommand moves an agent to another plan without going through billing.
type SetTierCommand struct{}

func (c *SetTierCommand) Name() string        { return "set-tier" }
func (c *SetTierCommand) Description() string { return "Sets an agent's tier (support overrides)" }

func (c *SetTierCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <email> <tier>", c.Name())
	}
	if !tiers.Valid(args[1]) {
		return fmt.Errorf("unknown tier %q", args[1])
	}

	db, err := connection(app)
	if err != nil {
		return err
	}
	agent, err := agents.FindByEmail(db, args[0])
	if err != nil {
		return fmt.Errorf("agent lookup failed: %w", err)
	}
	if err := agents.UpdateTier(db, agent.ID, tiers.Parse(args[1])); err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}

	fmt.Printf("Agent %s is now on %s\n", agent.Username, tiers.Parse(args[1]))
	return nil
}

// IssueTokenCommand prints a bearer token for an agent, for API debugging.
type IssueTokenCommand struct{}

func (c *IssueTokenCommand) Name() string        { return "issue-token" }
func (c *IssueTokenCommand) Description() string { return "Prints an API token for an agent" }

func (c *IssueTokenCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email>", c.Name())
	}

	db, err := connection(app)
	if err != nil {
		return err
	}
	agent, err := agents.FindByEmail(db, args[0])
	if err != nil {
		return fmt.Errorf("agent lookup failed: %w", err)
	}

	cfg := config.GetConfig()
	token, err := auth.IssueToken(cfg.JWTSecret, agent.ID, agent.Tier, cfg.GetJWTTTL(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// RunJobsCommand runs every background job once, e.g. from cron.
type RunJobsCommand struct{}

func (c *RunJobsCommand) Name() string        { return "run-jobs" }
func (c *RunJobsCommand) Description() string { return "Runs retention and subscription jobs once" }

func (c *RunJobsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run jobs")
	}

	scheduler, err := jobs.NewScheduler(app.DBManager, slog.Default())
	if err != nil {
		return err
	}
	scheduler.RunAll()
	return nil
}

// SeedCommand populates the DB with demo data
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with demo agents and traffic" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	events := fs.Int("events", 3000, "number of events to generate")
	days := fs.Int("days", 30, "spread events over this many days")
	username := fs.String("agent", "", "existing agent to seed (seeds demo agents if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *events)
	se.Days = *days

	if *username != "" {
		return se.SeedAgent(ctx, *username)
	}
	return se.Run(ctx)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db, err := connection(app)
	if err != nil {
		return fmt.Errorf("cannot check status: %w", err)
	}

	var count int64
	if err := db.Model(&agents.Agent{}).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Agents: %d", count)

	for _, tier := range tiers.All() {
		var perTier int64
		db.Model(&agents.Agent{}).Where("tier = ?", string(tier.Tier)).Count(&perTier)
		log.Printf("  - %s: %d", tier.Tier, perTier)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: alctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
