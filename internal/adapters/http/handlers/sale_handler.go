package handlers

import (
	"strconv"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/pagination"
	"vetbridge-affiliate/internal/pkg/response"
	"vetbridge-affiliate/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// SaleHandler handles sale ledger endpoints
type SaleHandler struct {
	sales       *services.SaleService
	commissions *services.CommissionService
	ledger      *services.LedgerService
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(sales *services.SaleService, commissions *services.CommissionService, ledger *services.LedgerService) *SaleHandler {
	return &SaleHandler{
		sales:       sales,
		commissions: commissions,
		ledger:      ledger,
	}
}

// RecordSaleRequest represents a sale to record.
// Amount is a decimal string with at most two fraction digits.
type RecordSaleRequest struct {
	AffiliateID  *uint  `json:"affiliate_id"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=32"`
	Amount       string `json:"amount" validate:"required,numeric"`
	ExternalRef  string `json:"external_ref" validate:"omitempty,max=64"`
	Compute      bool   `json:"compute"`
}

// TransitionRequest moves a ledger row to a new status
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved paid void"`
}

// ComputeRequest controls a commission computation
type ComputeRequest struct {
	Recompute bool `json:"recompute"`
}

func toCommissionResponses(rows []*models.Commission) []*models.CommissionResponse {
	out := make([]*models.CommissionResponse, len(rows))
	for i, row := range rows {
		out[i] = row.ToResponse()
	}
	return out
}

func computationResponse(result *services.ComputationResult) fiber.Map {
	return fiber.Map{
		"sale_id":          result.SaleID,
		"status":           result.Status,
		"forfeited_levels": result.ForfeitedLevels,
		"stale_levels":     result.StaleLevels,
		"total_cents":      result.TotalCents,
		"commissions":      toCommissionResponses(result.Commissions),
	}
}

// Record records a sale
// @Summary Record sale
// @Tags Sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RecordSaleRequest true "Sale"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /sales [post]
func (h *SaleHandler) Record(c *fiber.Ctx) error {
	var req RecordSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	result, err := h.sales.Record(c.Context(), &services.RecordSaleInput{
		AffiliateID:  req.AffiliateID,
		ReferralCode: req.ReferralCode,
		Amount:       req.Amount,
		ExternalRef:  req.ExternalRef,
		Compute:      req.Compute,
	})
	if err != nil {
		return respondError(c, err, "Failed to record sale")
	}

	data := fiber.Map{"sale": result.Sale.ToResponse()}
	if result.Computation != nil {
		data["computation"] = computationResponse(result.Computation)
	}
	return response.Created(c, "Sale recorded successfully", data)
}

// List lists sales
// @Summary List sales
// @Tags Sales
// @Produce json
// @Security BearerAuth
// @Param scope query string false "real | synthetic | all | run:<id>"
// @Param affiliate_id query int false "Producer"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /sales [get]
func (h *SaleHandler) List(c *fiber.Ctx) error {
	scope, err := queryScope(c)
	if err != nil {
		return respondError(c, err, "Invalid scope")
	}
	filter := repositories.SaleFilter{Scope: scope, Status: domain.LedgerStatus(c.Query("status"))}
	if raw := c.Query("affiliate_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid affiliate_id")
		}
		filter.AffiliateID = uint(id)
	}
	params := pagination.GetParams(c)

	sales, total, err := h.sales.List(c.Context(), filter, params.Offset, params.Limit)
	if err != nil {
		return respondError(c, err, "Failed to list sales")
	}

	out := make([]*models.SaleResponse, len(sales))
	for i, s := range sales {
		out[i] = s.ToResponse()
	}
	return response.Success(c, "Sales retrieved successfully", pagination.NewResponse(out, params, total))
}

// Get gets a sale
// @Summary Get sale
// @Tags Sales
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /sales/{id} [get]
func (h *SaleHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid sale ID")
	}

	sale, err := h.sales.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to get sale")
	}

	return response.Success(c, "Sale retrieved successfully", sale.ToResponse())
}

// Transition moves a sale one status forward
// @Summary Change sale status
// @Tags Sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale ID"
// @Param body body TransitionRequest true "Target status"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /sales/{id}/status [patch]
func (h *SaleHandler) Transition(c *fiber.Ctx) error {
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

	sale, err := h.sales.Transition(c.Context(), id, domain.LedgerStatus(req.Status))
	if err != nil {
		return respondError(c, err, "Failed to change sale status")
	}

	return response.Success(c, "Sale status updated successfully", sale.ToResponse())
}

// Compute computes (or recomputes) a sale's commissions
// @Summary Compute commissions
// @Tags Sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale ID"
// @Param body body ComputeRequest false "Options"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /sales/{id}/compute [post]
func (h *SaleHandler) Compute(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid sale ID")
	}
	var req ComputeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	result, err := h.commissions.ComputeCommissions(c.Context(), id, services.ComputeOptions{Recompute: req.Recompute})
	if err != nil {
		return respondError(c, err, "Failed to compute commissions")
	}

	return response.Success(c, "Commissions "+string(result.Status), computationResponse(result))
}

// Commissions lists a sale's commission rows
// @Summary Sale commissions
// @Tags Sales
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale ID"
// @Success 200 {object} response.Response
// @Router /sales/{id}/commissions [get]
func (h *SaleHandler) Commissions(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid sale ID")
	}
	if _, err := h.sales.GetByID(c.Context(), id); err != nil {
		return respondError(c, err, "Failed to get sale")
	}

	rows, err := h.ledger.ListBySale(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to list commissions")
	}

	return response.Success(c, "Commissions retrieved successfully", toCommissionResponses(rows))
}
