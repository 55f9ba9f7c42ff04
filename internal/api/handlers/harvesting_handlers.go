package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/services/harvesting"
)

// HarvestingHandler exposes the harvesting engine over HTTP.
type HarvestingHandler struct {
	service *harvesting.Service
	logger  *zap.Logger
}

// NewHarvestingHandler creates a new harvesting handler
func NewHarvestingHandler(service *harvesting.Service, logger *zap.Logger) *HarvestingHandler {
	return &HarvestingHandler{
		service: service,
		logger:  logger,
	}
}

// ScanPortfolio triggers a harvest scan for the requested scope.
// POST /api/v1/harvesting/scan
func (h *HarvestingHandler) ScanPortfolio(c *gin.Context) {
	var req struct {
		AdvisorID uuid.UUID  `json:"advisor_id" binding:"required"`
		ClientID  *uuid.UUID `json:"client_id"`
		AccountID *uuid.UUID `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	opportunities, err := h.service.ScanPortfolio(c.Request.Context(), req.AdvisorID, req.ClientID, req.AccountID)
	if err != nil {
		h.logger.Error("portfolio scan failed",
			zap.String("advisor_id", req.AdvisorID.String()),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"opportunities": opportunities,
		"count":         len(opportunities),
	})
}

// ListOpportunities returns the advisor's active opportunities.
// GET /api/v1/harvesting/opportunities?advisor_id=
func (h *HarvestingHandler) ListOpportunities(c *gin.Context) {
	advisorID, err := uuid.Parse(c.Query("advisor_id"))
	if err != nil {
		respondBadRequest(c, "invalid advisor_id")
		return
	}

	opportunities, err := h.service.ListActiveOpportunities(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"opportunities": opportunities,
		"count":         len(opportunities),
	})
}

// GetOpportunity returns one opportunity by id.
// GET /api/v1/harvesting/opportunities/:id
func (h *HarvestingHandler) GetOpportunity(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	opp, err := h.service.GetOpportunity(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opp)
}

// GetRecommendations returns replacement recommendations, computing and
// caching them on first request.
// GET /api/v1/harvesting/opportunities/:id/recommendations
func (h *HarvestingHandler) GetRecommendations(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	recs, err := h.service.GetRecommendations(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// MarkRecommended transitions an identified opportunity to RECOMMENDED.
// POST /api/v1/harvesting/opportunities/:id/recommend
func (h *HarvestingHandler) MarkRecommended(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	opp, err := h.service.MarkRecommended(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opp)
}

// Approve approves an opportunity after a fresh wash-sale check.
// POST /api/v1/harvesting/opportunities/:id/approve
func (h *HarvestingHandler) Approve(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		ApprovedBy        uuid.UUID `json:"approved_by" binding:"required"`
		ReplacementSymbol string    `json:"replacement_symbol"`
		Notes             string    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	opp, err := h.service.Approve(c.Request.Context(), id, harvesting.ApprovalRequest{
		ApprovedBy:        req.ApprovedBy,
		ReplacementSymbol: req.ReplacementSymbol,
		Notes:             req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opp)
}

// BeginExecution marks an approved opportunity as executing.
// POST /api/v1/harvesting/opportunities/:id/execute
func (h *HarvestingHandler) BeginExecution(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	opp, err := h.service.BeginExecution(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opp)
}

// CompleteExecution records the executed trades and opens the wash-sale
// tracking window.
// POST /api/v1/harvesting/opportunities/:id/complete
func (h *HarvestingHandler) CompleteExecution(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		SellTransactionID *uuid.UUID       `json:"sell_transaction_id"`
		BuyTransactionID  *uuid.UUID       `json:"buy_transaction_id"`
		RealizedLoss      *decimal.Decimal `json:"realized_loss"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	opp, err := h.service.CompleteExecution(c.Request.Context(), id, harvesting.ExecutionRequest{
		SellTransactionID: req.SellTransactionID,
		BuyTransactionID:  req.BuyTransactionID,
		RealizedLoss:      req.RealizedLoss,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opp)
}

// Reject rejects an opportunity with a required reason.
// POST /api/v1/harvesting/opportunities/:id/reject
func (h *HarvestingHandler) Reject(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "a rejection reason is required")
		return
	}

	opp, err := h.service.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opp)
}

// AnalyzeWashSale runs a point-in-time wash-sale risk check for a symbol.
// POST /api/v1/harvesting/wash-sales/analyze
func (h *HarvestingHandler) AnalyzeWashSale(c *gin.Context) {
	var req struct {
		AccountID uuid.UUID `json:"account_id" binding:"required"`
		Symbol    string    `json:"symbol" binding:"required"`
		CUSIP     string    `json:"cusip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	analysis, err := h.service.AnalyzeWashSaleRisk(c.Request.Context(), req.AccountID, req.Symbol, req.CUSIP)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// CheckViolations triggers an immediate violation sweep for the advisor.
// POST /api/v1/harvesting/wash-sales/check-violations
func (h *HarvestingHandler) CheckViolations(c *gin.Context) {
	advisorID, err := uuid.Parse(c.Query("advisor_id"))
	if err != nil {
		respondBadRequest(c, "invalid advisor_id")
		return
	}

	windows, err := h.service.CheckWashSaleViolations(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"windows": windows,
		"count":   len(windows),
	})
}

// GetSettings returns the effective settings for a scope after cascade
// resolution.
// GET /api/v1/harvesting/settings?advisor_id=&client_id=&account_id=
func (h *HarvestingHandler) GetSettings(c *gin.Context) {
	advisorID, err := uuid.Parse(c.Query("advisor_id"))
	if err != nil {
		respondBadRequest(c, "invalid advisor_id")
		return
	}

	clientID, ok := parseOptionalUUIDQuery(c, "client_id")
	if !ok {
		return
	}
	accountID, ok := parseOptionalUUIDQuery(c, "account_id")
	if !ok {
		return
	}

	settings := h.service.ResolveSettings(c.Request.Context(), advisorID, clientID, accountID)
	c.JSON(http.StatusOK, settings)
}
