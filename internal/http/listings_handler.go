package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/shopspring/decimal"

	"agentlinker/internal/listings"
)

type listingRequest struct {
	Title       string          `json:"title" validate:"required,max=160"`
	Description string          `json:"description" validate:"max=5000"`
	Address     string          `json:"address" validate:"max=255"`
	City        string          `json:"city" validate:"max=80"`
	Price       decimal.Decimal `json:"price"`
	Bedrooms    int             `json:"bedrooms" validate:"gte=0,lte=100"`
	Bathrooms   decimal.Decimal `json:"bathrooms"`
	SquareFeet  int             `json:"square_feet" validate:"gte=0"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	Status      string          `json:"status" validate:"omitempty,oneof=active pending sold draft"`
}

type listingUpdateRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=160"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Address     *string          `json:"address" validate:"omitempty,max=255"`
	City        *string          `json:"city" validate:"omitempty,max=80"`
	Price       *decimal.Decimal `json:"price"`
	Bedrooms    *int             `json:"bedrooms" validate:"omitempty,gte=0,lte=100"`
	Bathrooms   *decimal.Decimal `json:"bathrooms"`
	SquareFeet  *int             `json:"square_feet" validate:"omitempty,gte=0"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active pending sold draft"`
}

func negativeAmount(ctx *cartridge.Context, field string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  field + " must not be negative",
		"fields": []string{field},
	})
}

// ListingsIndexAction lists the agent's listings, optionally filtered by ?status=.
func ListingsIndexAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}

	status := ctx.Query("status")
	if status != "" && !listings.ValidStatus(status) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status filter",
		})
	}

	result, err := listings.ListForAgent(ctx.DB(), agent.ID, listings.Status(status))
	if err != nil {
		ctx.Logger.Error("Failed to list listings", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"listings": result})
}

// ListingCreateAction creates a listing within the tier's listing allowance.
func ListingCreateAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}

	var req listingRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	if req.Price.IsNegative() {
		return negativeAmount(ctx, "price")
	}
	if req.Bathrooms.IsNegative() {
		return negativeAmount(ctx, "bathrooms")
	}

	listing, err := listings.Create(ctx.DB(), agent.ID, agent.CurrentTier(), listings.Input{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Price:       req.Price,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		SquareFeet:  req.SquareFeet,
		ImageURL:    req.ImageURL,
		Status:      listings.Status(req.Status),
	})
	if err != nil {
		if errors.Is(err, listings.ErrListingLimitReached) {
			return paymentRequired(ctx, err)
		}
		ctx.Logger.Error("Failed to create listing", slog.Any("error", err))
		return internalError(ctx)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"listing": listing})
}

// ListingShowAction returns one of the agent's listings.
func ListingShowAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	id, ok := paramID(ctx)
	if !ok {
		return invalidID(ctx)
	}

	listing, err := listings.Get(ctx.DB(), agent.ID, id)
	if err != nil {
		if errors.Is(err, listings.ErrListingNotFound) {
			return notFound(ctx, "Listing")
		}
		ctx.Logger.Error("Failed to load listing", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"listing": listing})
}

// ListingUpdateAction applies a partial update to one of the agent's listings.
func ListingUpdateAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	id, ok := paramID(ctx)
	if !ok {
		return invalidID(ctx)
	}

	var req listingUpdateRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	if req.Price != nil && req.Price.IsNegative() {
		return negativeAmount(ctx, "price")
	}
	if req.Bathrooms != nil && req.Bathrooms.IsNegative() {
		return negativeAmount(ctx, "bathrooms")
	}

	update := listings.Update{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Price:       req.Price,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		SquareFeet:  req.SquareFeet,
		ImageURL:    req.ImageURL,
	}
	if req.Status != nil {
		status := listings.Status(*req.Status)
		update.Status = &status
	}

	listing, err := listings.Apply(ctx.DB(), agent.ID, id, agent.CurrentTier(), update)
	if err != nil {
		switch {
		case errors.Is(err, listings.ErrListingNotFound):
			return notFound(ctx, "Listing")
		case errors.Is(err, listings.ErrListingLimitReached):
			return paymentRequired(ctx, err)
		}
		ctx.Logger.Error("Failed to update listing", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"listing": listing})
}

// ListingDeleteAction removes one of the agent's listings.
func ListingDeleteAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	id, ok := paramID(ctx)
	if !ok {
		return invalidID(ctx)
	}

	if err := listings.Delete(ctx.DB(), agent.ID, id); err != nil {
		if errors.Is(err, listings.ErrListingNotFound) {
			return notFound(ctx, "Listing")
		}
		ctx.Logger.Error("Failed to delete listing", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"success": true})
}
