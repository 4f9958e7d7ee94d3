package handlers

import (
	"strconv"

	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/pagination"
	"vetbridge-affiliate/internal/pkg/response"
	"vetbridge-affiliate/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// CommissionHandler handles commission ledger endpoints
type CommissionHandler struct {
	ledger *services.LedgerService
}

// NewCommissionHandler creates a new commission handler
func NewCommissionHandler(ledger *services.LedgerService) *CommissionHandler {
	return &CommissionHandler{ledger: ledger}
}

// List lists commission rows
// @Summary List commissions
// @Tags Commissions
// @Produce json
// @Security BearerAuth
// @Param scope query string false "real | synthetic | all | run:<id>"
// @Param recipient_id query int false "Recipient"
// @Param sale_id query int false "Sale"
// @Param status query string false "Status"
// @Success 200 {object} response.Response
// @Router /commissions [get]
func (h *CommissionHandler) List(c *fiber.Ctx) error {
	scope, err := queryScope(c)
	if err != nil {
		return respondError(c, err, "Invalid scope")
	}
	filter := repositories.CommissionFilter{Scope: scope, Status: domain.LedgerStatus(c.Query("status"))}
	if raw := c.Query("recipient_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid recipient_id")
		}
		filter.RecipientID = uint(id)
	}
	if raw := c.Query("sale_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid sale_id")
		}
		filter.SaleID = uint(id)
	}
	params := pagination.GetParams(c)

	rows, total, err := h.ledger.ListCommissions(c.Context(), filter, params.Offset, params.Limit)
	if err != nil {
		return respondError(c, err, "Failed to list commissions")
	}

	return response.Success(c, "Commissions retrieved successfully",
		pagination.NewResponse(toCommissionResponses(rows), params, total))
}

// Get gets a commission
// @Summary Get commission
// @Tags Commissions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Commission ID"
// @Success 200 {object} response.Response
// @Router /commissions/{id} [get]
func (h *CommissionHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid commission ID")
	}

	commission, err := h.ledger.GetCommission(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to get commission")
	}

	return response.Success(c, "Commission retrieved successfully", commission.ToResponse())
}

// Transition moves one commission a step forward
// @Summary Change commission status
// @Tags Commissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Commission ID"
// @Param body body TransitionRequest true "Target status"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /commissions/{id}/status [patch]
func (h *CommissionHandler) Transition(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid commission ID")
	}
	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	commission, err := h.ledger.TransitionCommission(c.Context(), id, domain.LedgerStatus(req.Status))
	if err != nil {
		return respondError(c, err, "Failed to change commission status")
	}

	return response.Success(c, "Commission status updated successfully", commission.ToResponse())
}

// TransitionBySale moves every commission of a sale in one transaction
// @Summary Change all commissions of a sale
// @Tags Commissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale ID"
// @Param body body TransitionRequest true "Target status"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /sales/{id}/commissions/status [patch]
func (h *CommissionHandler) TransitionBySale(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid sale ID")
	}
	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	moved, err := h.ledger.TransitionSaleCommissions(c.Context(), id, domain.LedgerStatus(req.Status))
	if err != nil {
		return respondError(c, err, "Failed to change commission status")
	}

	return response.Success(c, "Commissions updated successfully", fiber.Map{"sale_id": id, "moved": moved})
}
