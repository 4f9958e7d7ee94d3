package handlers

import (
	"fmt"
	"strconv"
	"time"

	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/export"
	"vetbridge-affiliate/internal/pkg/pagination"
	"vetbridge-affiliate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ReportHandler handles aggregation and export endpoints
type ReportHandler struct {
	ledger *services.LedgerService
}

// NewReportHandler creates a new report handler
func NewReportHandler(ledger *services.LedgerService) *ReportHandler {
	return &ReportHandler{ledger: ledger}
}

// Affiliates returns the paged per-affiliate aggregation
// @Summary Affiliate commission report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param scope query string false "real | synthetic | all | run:<id>"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /reports/affiliates [get]
func (h *ReportHandler) Affiliates(c *fiber.Ctx) error {
	scope, err := queryScope(c)
	if err != nil {
		return respondError(c, err, "Invalid scope")
	}
	params := pagination.GetParams(c)

	reports, total, err := h.ledger.Report(c.Context(), scope, params.Offset, params.Limit)
	if err != nil {
		return respondError(c, err, "Failed to build report")
	}

	out := make([]*services.AffiliateReportResponse, len(reports))
	for i, r := range reports {
		out[i] = r.ToResponse()
	}
	return response.Success(c, "Report retrieved successfully", pagination.NewResponse(out, params, total))
}

// Export streams the flat CSV export
// @Summary Export commission report (CSV, version 1)
// @Tags Reports
// @Produce text/csv
// @Security BearerAuth
// @Param scope query string false "real | synthetic | all | run:<id>"
// @Success 200 {string} string "CSV"
// @Router /reports/export [get]
func (h *ReportHandler) Export(c *fiber.Ctx) error {
	scope, err := queryScope(c)
	if err != nil {
		return respondError(c, err, "Invalid scope")
	}

	filename := fmt.Sprintf("commissions-%s.csv", time.Now().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Set("X-Export-Version", strconv.Itoa(export.Version))

	rows, err := h.ledger.ExportCSV(c.Context(), scope, c.Response().BodyWriter())
	if err != nil {
		log.Error().Err(err).Int("rows", rows).Msg("❌ Export aborted")
		c.Response().ResetBody()
		return respondError(c, err, "Failed to export report")
	}
	return nil
}

// Verify recomputes the report from raw rows and lists mismatches
// @Summary Verify report against raw rows
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param scope query string false "real | synthetic | all | run:<id>"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /reports/verify [get]
func (h *ReportHandler) Verify(c *fiber.Ctx) error {
	scope, err := queryScope(c)
	if err != nil {
		return respondError(c, err, "Invalid scope")
	}

	result, err := h.ledger.VerifyReport(c.Context(), scope)
	if err != nil {
		return respondError(c, err, "Failed to verify report")
	}
	if !result.OK() {
		return c.Status(fiber.StatusConflict).JSON(response.Response{
			Success: false,
			Message: "Report differs from raw commission rows",
			Data:    result,
		})
	}

	return response.Success(c, "Report matches raw commission rows", result)
}
