package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/pagination"
	"carbonflow/internal/services"
)

// ClientHandler handles client contact requests.
type ClientHandler struct {
	clientService    services.ClientServicer
	portfolioService services.PortfolioServicer
	auditService     services.AuditServicer
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService services.ClientServicer, portfolioService services.PortfolioServicer, auditService services.AuditServicer) *ClientHandler {
	return &ClientHandler{clientService: clientService, portfolioService: portfolioService, auditService: auditService}
}

// ClientRequest represents the request payload for creating or updating a client.
type ClientRequest struct {
	Name       string `json:"name" binding:"omitempty,min=1,max=255"`
	Email      string `json:"email" binding:"omitempty,email,max=255"`
	Phone      string `json:"phone" binding:"max=50"`
	Street     string `json:"street" binding:"max=255"`
	City       string `json:"city" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Country    string `json:"country" binding:"max=100"`
}

func (r *ClientRequest) toInput() services.ClientInput {
	return services.ClientInput{
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Street:     r.Street,
		City:       r.City,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

// CreateClient handles the creation of a new client contact.
// @Summary     Create a client
// @Description Create a new client contact owned by the authenticated agent
// @Tags        clients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ClientRequest true "Client details"
// @Success     201 {object} models.Client "Client created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	client, err := h.clientService.CreateClient(userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_CLIENT", "client", client.ID, c.ClientIP(),
		map[string]interface{}{"name": client.Name})

	c.JSON(http.StatusCreated, gin.H{"client": client})
}

// GetClients handles listing the actor's clients.
// @Summary     Get clients
// @Description Get a paginated list of clients visible to the authenticated user
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Client] "Paginated clients"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /clients [get]
func (h *ClientHandler) GetClients(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.clientService.GetClients(userID, role, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SearchClients handles the interactive client search box.
// @Summary     Search clients
// @Description Search clients by name or email prefix
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       q     query string true  "Search prefix"
// @Param       limit query int    false "Max results (default 10, max 50)"
// @Success     200 {object} map[string]interface{} "Matching clients"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Router      /clients/search [get]
func (h *ClientHandler) SearchClients(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	clients, err := h.clientService.SearchClients(userID, role, c.Query("q"), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// ExportClients handles the CSV download of the actor's client list.
// @Summary     Export clients
// @Description Download the client list, with portfolio totals, as CSV
// @Tags        clients
// @Produce     text/csv
// @Security    BearerAuth
// @Success     200 {string} string "CSV payload"
// @Success     204 "No clients to export"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /clients/export [get]
func (h *ClientHandler) ExportClients(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	data, err := h.clientService.ExportCSV(userID, role)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if data == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="clients.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// GetClient handles retrieving a single client with its portfolio.
// @Summary     Get a client
// @Description Get a single client and its current portfolio
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Client ID"
// @Success     200 {object} map[string]interface{} "Client with portfolio"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	client, err := h.clientService.GetClientByID(userID, role, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio := h.portfolioService.CalculateClientPortfolio(client.ID, services.PortfolioOptions{})

	c.JSON(http.StatusOK, gin.H{"client": client, "portfolio": portfolio})
}

// UpdateClient handles updating a client's contact fields.
// @Summary     Update a client
// @Description Update a client's contact details
// @Tags        clients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Client ID"
// @Param       request body ClientRequest true "Client details"
// @Success     200 {object} models.Client "Client updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id} [put]
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	client, err := h.clientService.UpdateClient(userID, role, c.Param("id"), req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_CLIENT", "client", client.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"client": client})
}

// DeleteClient handles removing a client contact.
// @Summary     Delete a client
// @Description Soft-delete a client contact record
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Client ID"
// @Success     200 {object} map[string]string "Client deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id} [delete]
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	clientID := c.Param("id")
	if err := h.clientService.DeleteClient(userID, role, clientID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_CLIENT", "client", clientID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}
