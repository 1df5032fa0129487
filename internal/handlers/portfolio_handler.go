package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carbonflow/internal/services"
)

// PortfolioHandler handles portfolio aggregation requests.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	clientService    services.ClientServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, clientService services.ClientServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, clientService: clientService}
}

// GetClientPortfolio returns a client's cumulative portfolio.
// @Summary     Get client portfolio
// @Description Get the cumulative system size and project count for a client
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Client ID"
// @Success     200 {object} services.PortfolioData "Portfolio totals"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id}/portfolio [get]
func (h *PortfolioHandler) GetClientPortfolio(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Resolve through the client service so visibility rules apply.
	client, err := h.clientService.GetClientByID(userID, role, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio := h.portfolioService.CalculateClientPortfolio(client.ID, services.PortfolioOptions{})
	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// GetAgentPortfolio returns the authenticated agent's cumulative portfolio.
// @Summary     Get own portfolio
// @Description Get the cumulative system size and project count across the agent's proposals
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.PortfolioData "Portfolio totals"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio [get]
func (h *PortfolioHandler) GetAgentPortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio := h.portfolioService.CalculateAgentPortfolio(userID, services.PortfolioOptions{})
	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// RepairShares triggers a share-percentage recompute across all clients.
// @Summary     Repair revenue shares
// @Description Recompute and fix drifted revenue-share percentages (admin only)
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.RepairReport "Repair summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Admin only"
// @Router      /admin/repair-shares [post]
func (h *PortfolioHandler) RepairShares(c *gin.Context) {
	report, err := h.portfolioService.RepairAllClientShares()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
