package handlers

import (
	"errors"
	"strconv"

	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// respondError maps domain errors onto the response envelope
func respondError(c *fiber.Ctx, err error, fallback string) error {
	var cycle *domain.HierarchyCycleError
	switch {
	case errors.As(err, &cycle):
		return response.Conflict(c, err.Error())

	case errors.Is(err, domain.ErrAffiliateNotFound),
		errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, domain.ErrCommissionNotFound),
		errors.Is(err, domain.ErrSimulationNotFound),
		errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, err.Error())

	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidScope),
		errors.Is(err, domain.ErrInvalidRandomness),
		errors.Is(err, domain.ErrSimulationScale),
		errors.Is(err, domain.ErrUplineNotFound):
		return response.BadRequest(c, err.Error())

	case errors.Is(err, domain.ErrReferralCodeTaken),
		errors.Is(err, domain.ErrDuplicateEntry),
		errors.Is(err, domain.ErrUplineCycle),
		errors.Is(err, domain.ErrRecomputeLocked),
		errors.Is(err, domain.ErrSimulationCancelled):
		return response.Conflict(c, err.Error())

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSaleNotApproved),
		errors.Is(err, domain.ErrSaleVoid),
		errors.Is(err, domain.ErrProvenanceMismatch):
		return response.UnprocessableEntity(c, err.Error())

	case errors.Is(err, domain.ErrInvalidCredentials):
		return response.Unauthorized(c, "Invalid username or password")
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("❌ " + fallback)
	return response.InternalServerError(c, fallback)
}

// paramID parses a positive numeric route parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidInput
	}
	return uint(id), nil
}

// queryScope reads the provenance scope query parameter (default real)
func queryScope(c *fiber.Ctx) (domain.Scope, error) {
	return domain.ParseScope(c.Query("scope"))
}
