package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/agents"
	"agentlinker/internal/auth"
	"agentlinker/internal/config"
	"agentlinker/internal/tiers"
)

type signupRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Username    string `json:"username" validate:"required,username"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=80"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func issueFor(agent *agents.Agent) (string, error) {
	cfg := config.GetConfig()
	return auth.IssueToken(cfg.JWTSecret, agent.ID, string(agent.CurrentTier()), cfg.GetJWTTTL(), time.Now())
}

// SignupAction registers an agent on the free tier and returns a token.
func SignupAction(ctx *cartridge.Context) error {
	var req signupRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}

	agent, err := agents.Create(ctx.DB(), agents.CreateInput{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Tier:        tiers.Free,
	})
	if err != nil {
		if errors.Is(err, agents.ErrAgentExists) {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "An account with that email or username already exists",
			})
		}
		ctx.Logger.Error("Failed to create agent", slog.Any("error", err))
		return internalError(ctx)
	}

	token, err := issueFor(agent)
	if err != nil {
		ctx.Logger.Error("Failed to issue token", slog.Any("error", err))
		return internalError(ctx)
	}

	ctx.Logger.Info("Agent signed up", slog.Uint64("agent_id", uint64(agent.ID)))
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"agent": agent,
	})
}

// LoginAction exchanges email and password for a token.
func LoginAction(ctx *cartridge.Context) error {
	var req loginRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}

	agent, err := agents.Authenticate(ctx.DB(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, agents.ErrInvalidCredentials) {
			ctx.Logger.Warn("Failed login attempt", slog.String("ip", ctx.IP()))
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid email or password",
			})
		}
		ctx.Logger.Error("Failed to authenticate agent", slog.Any("error", err))
		return internalError(ctx)
	}

	token, err := issueFor(agent)
	if err != nil {
		ctx.Logger.Error("Failed to issue token", slog.Any("error", err))
		return internalError(ctx)
	}

	return ctx.JSON(fiber.Map{
		"token": token,
		"agent": agent,
	})
}

// MeAction returns the authenticated agent.
func MeAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"agent": agent,
		"plan":  tiers.For(agent.CurrentTier()),
	})
}
