package handlers

import (
	"errors"

	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/pagination"
	"vetbridge-affiliate/internal/pkg/response"
	"vetbridge-affiliate/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// SimulationHandler handles stress-test endpoints
type SimulationHandler struct {
	simulator *services.SimulatorService
	ledger    *services.LedgerService
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(simulator *services.SimulatorService, ledger *services.LedgerService) *SimulationHandler {
	return &SimulationHandler{simulator: simulator, ledger: ledger}
}

// RunSimulationRequest configures a stress-test run
type RunSimulationRequest struct {
	VeteranOptIns       int    `json:"veteran_opt_ins" validate:"required"`
	HierarchyRandomness *int   `json:"hierarchy_randomness" validate:"required"`
	Seed                *int64 `json:"seed"`
	Verify              bool   `json:"verify"`
}

// Run executes a stress-test run
// @Summary Run simulation
// @Description Generates synthetic affiliates and sales through the real commission path
// @Tags Simulations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RunSimulationRequest true "Run configuration"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /simulations [post]
func (h *SimulationHandler) Run(c *fiber.Ctx) error {
	var req RunSimulationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	result, err := h.simulator.Run(c.Context(), services.SimulationConfig{
		VeteranOptIns:       req.VeteranOptIns,
		HierarchyRandomness: *req.HierarchyRandomness,
		Seed:                req.Seed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSimulationCancelled) && result != nil {
			return c.Status(fiber.StatusConflict).JSON(response.Response{
				Success: false,
				Error:   err.Error(),
				Data:    result,
			})
		}
		return respondError(c, err, "Simulation failed")
	}

	data := fiber.Map{"result": result}
	if req.Verify {
		verify, err := h.ledger.VerifyReport(c.Context(), domain.Scope{Kind: domain.ScopeRun, RunID: result.RunID})
		if err != nil {
			return respondError(c, err, "Failed to verify simulation report")
		}
		data["verify"] = verify
	}

	return response.Created(c, "Simulation completed", data)
}

// List lists simulation runs
// @Summary List simulation runs
// @Tags Simulations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /simulations [get]
func (h *SimulationHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	runs, total, err := h.simulator.ListRuns(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return respondError(c, err, "Failed to list simulation runs")
	}
	return response.Success(c, "Simulation runs retrieved successfully", pagination.NewResponse(runs, params, total))
}

// Get gets a simulation run
// @Summary Get simulation run
// @Tags Simulations
// @Produce json
// @Security BearerAuth
// @Param runId path string true "Run ID"
// @Success 200 {object} response.Response
// @Router /simulations/{runId} [get]
func (h *SimulationHandler) Get(c *fiber.Ctx) error {
	run, err := h.simulator.GetRun(c.Context(), c.Params("runId"))
	if err != nil {
		return respondError(c, err, "Failed to get simulation run")
	}
	return response.Success(c, "Simulation run retrieved successfully", run)
}

// Clear deletes one run's synthetic rows
// @Summary Clear simulation run
// @Tags Simulations
// @Produce json
// @Security BearerAuth
// @Param runId path string true "Run ID"
// @Success 200 {object} response.Response
// @Router /simulations/{runId} [delete]
func (h *SimulationHandler) Clear(c *fiber.Ctx) error {
	result, err := h.simulator.Clear(c.Context(), c.Params("runId"))
	if err != nil {
		return respondError(c, err, "Failed to clear simulation data")
	}
	return response.Success(c, "Simulation data cleared", result)
}

// ClearAll deletes every synthetic row
// @Summary Clear all simulation data
// @Tags Simulations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /simulations [delete]
func (h *SimulationHandler) ClearAll(c *fiber.Ctx) error {
	result, err := h.simulator.Clear(c.Context(), "")
	if err != nil {
		return respondError(c, err, "Failed to clear simulation data")
	}
	return response.Success(c, "All simulation data cleared", result)
}
