package handlers

import (
	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/pagination"
	"vetbridge-affiliate/internal/pkg/response"
	"vetbridge-affiliate/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// AffiliateHandler handles affiliate directory endpoints
type AffiliateHandler struct {
	directory *services.DirectoryService
	ledger    *services.LedgerService
	resolver  *services.HierarchyResolver
}

// NewAffiliateHandler creates a new affiliate handler
func NewAffiliateHandler(directory *services.DirectoryService, ledger *services.LedgerService, resolver *services.HierarchyResolver) *AffiliateHandler {
	return &AffiliateHandler{
		directory: directory,
		ledger:    ledger,
		resolver:  resolver,
	}
}

// CreateAffiliateRequest represents affiliate intake
type CreateAffiliateRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email" validate:"omitempty,email,max=160"`
	ReferralCode string `json:"referral_code" validate:"omitempty,alphanum,max=32"`
	Role         string `json:"role" validate:"omitempty,oneof=master sub_master affiliate"`
	UplineID     *uint  `json:"upline_id"`
	UplineCode   string `json:"upline_code" validate:"omitempty,max=32"`
	CompActive   bool   `json:"comp_active"`
}

// SetUplineRequest re-parents an affiliate; null makes it a root
type SetUplineRequest struct {
	UplineID *uint `json:"upline_id"`
}

// SetStatusRequest changes affiliate status
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// SetCompActiveRequest changes the compensation-active flag
type SetCompActiveRequest struct {
	CompActive *bool `json:"comp_active" validate:"required"`
}

func toAffiliateResponses(affiliates []*models.Affiliate) []*models.AffiliateResponse {
	out := make([]*models.AffiliateResponse, len(affiliates))
	for i, a := range affiliates {
		out[i] = a.ToResponse()
	}
	return out
}

// Create registers an affiliate
// @Summary Create affiliate
// @Tags Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateAffiliateRequest true "Affiliate"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /affiliates [post]
func (h *AffiliateHandler) Create(c *fiber.Ctx) error {
	var req CreateAffiliateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	affiliate, err := h.directory.Create(c.Context(), &services.CreateAffiliateInput{
		Name:         req.Name,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
		Role:         domain.Role(req.Role),
		UplineID:     req.UplineID,
		UplineCode:   req.UplineCode,
		CompActive:   req.CompActive,
	})
	if err != nil {
		return respondError(c, err, "Failed to create affiliate")
	}

	return response.Created(c, "Affiliate created successfully", affiliate.ToResponse())
}

// List lists affiliates
// @Summary List affiliates
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Param scope query string false "real | synthetic | all | run:<id>"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /affiliates [get]
func (h *AffiliateHandler) List(c *fiber.Ctx) error {
	scope, err := queryScope(c)
	if err != nil {
		return respondError(c, err, "Invalid scope")
	}
	params := pagination.GetParams(c)

	affiliates, total, err := h.directory.List(c.Context(), scope, params.Offset, params.Limit)
	if err != nil {
		return respondError(c, err, "Failed to list affiliates")
	}

	return response.Success(c, "Affiliates retrieved successfully",
		pagination.NewResponse(toAffiliateResponses(affiliates), params, total))
}

// Get gets an affiliate by ID
// @Summary Get affiliate
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /affiliates/{id} [get]
func (h *AffiliateHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}

	affiliate, err := h.directory.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to get affiliate")
	}

	return response.Success(c, "Affiliate retrieved successfully", affiliate.ToResponse())
}

// GetByCode gets an affiliate by referral code
// @Summary Get affiliate by referral code
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Param code path string true "Referral code"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /affiliates/code/{code} [get]
func (h *AffiliateHandler) GetByCode(c *fiber.Ctx) error {
	affiliate, err := h.directory.GetByReferralCode(c.Context(), c.Params("code"))
	if err != nil {
		return respondError(c, err, "Failed to get affiliate")
	}
	return response.Success(c, "Affiliate retrieved successfully", affiliate.ToResponse())
}

// SetUpline re-parents an affiliate
// @Summary Change upline
// @Tags Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Param body body SetUplineRequest true "New upline"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /affiliates/{id}/upline [patch]
func (h *AffiliateHandler) SetUpline(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}
	var req SetUplineRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	affiliate, err := h.directory.SetUpline(c.Context(), id, req.UplineID)
	if err != nil {
		return respondError(c, err, "Failed to change upline")
	}

	return response.Success(c, "Upline updated successfully", affiliate.ToResponse())
}

// SetStatus activates or deactivates an affiliate
// @Summary Change affiliate status
// @Tags Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Param body body SetStatusRequest true "Status"
// @Success 200 {object} response.Response
// @Router /affiliates/{id}/status [patch]
func (h *AffiliateHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}
	var req SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	affiliate, err := h.directory.SetStatus(c.Context(), id, domain.AffiliateStatus(req.Status))
	if err != nil {
		return respondError(c, err, "Failed to change status")
	}

	return response.Success(c, "Status updated successfully", affiliate.ToResponse())
}

// SetCompActive changes the compensation-active flag
// @Summary Change comp-active flag
// @Tags Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Param body body SetCompActiveRequest true "Flag"
// @Success 200 {object} response.Response
// @Router /affiliates/{id}/comp-active [patch]
func (h *AffiliateHandler) SetCompActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}
	var req SetCompActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	affiliate, err := h.directory.SetCompActive(c.Context(), id, *req.CompActive)
	if err != nil {
		return respondError(c, err, "Failed to change comp-active flag")
	}

	return response.Success(c, "Comp-active flag updated successfully", affiliate.ToResponse())
}

// Upline resolves the commission chain of an affiliate
// @Summary Resolve upline chain
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Success 200 {object} response.Response
// @Router /affiliates/{id}/upline [get]
func (h *AffiliateHandler) Upline(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}

	entries, err := h.resolver.ResolveUpline(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to resolve upline")
	}

	return response.Success(c, "Upline resolved successfully", entries)
}

// Downline counts the first three downline generations
// @Summary Downline counts
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Success 200 {object} response.Response
// @Router /affiliates/{id}/downline [get]
func (h *AffiliateHandler) Downline(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}

	counts, err := h.directory.Downline(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to count downline")
	}

	return response.Success(c, "Downline retrieved successfully", counts)
}

// Summary returns an affiliate's commission totals
// @Summary Affiliate commission summary
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Success 200 {object} response.Response
// @Router /affiliates/{id}/summary [get]
func (h *AffiliateHandler) Summary(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid affiliate ID")
	}

	summary, err := h.ledger.AffiliateSummary(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to build summary")
	}

	return response.Success(c, "Summary retrieved successfully", summary.ToResponse())
}

// RebuildCache recomputes the upline cache columns
// @Summary Rebuild upline cache
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /affiliates/rebuild-cache [post]
func (h *AffiliateHandler) RebuildCache(c *fiber.Ctx) error {
	updated, err := h.resolver.RebuildUplineCache(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to rebuild upline cache")
	}

	return response.Success(c, "Upline cache rebuilt", fiber.Map{"updated": updated})
}
