package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carbonflow/internal/places"
)

// PlacesHandler proxies address autocomplete and place details lookups.
type PlacesHandler struct {
	placesClient *places.Client
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(placesClient *places.Client) *PlacesHandler {
	return &PlacesHandler{placesClient: placesClient}
}

// Autocomplete returns address predictions for a partial input.
// @Summary     Address autocomplete
// @Description Get address predictions for a partial input
// @Tags        places
// @Produce     json
// @Security    BearerAuth
// @Param       input query string true "Partial address"
// @Success     200 {object} map[string]interface{} "Predictions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     429 {object} ErrorResponse "Rate limited or quota exceeded"
// @Failure     502 {object} ErrorResponse "Lookup unavailable"
// @Router      /places/autocomplete [get]
func (h *PlacesHandler) Autocomplete(c *gin.Context) {
	predictions, err := h.placesClient.Autocomplete(c.Request.Context(), c.Query("input"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}

// GetDetails resolves a place ID into a structured address.
// @Summary     Place details
// @Description Resolve a place ID into street, city, postal code, country, and coordinates
// @Tags        places
// @Produce     json
// @Security    BearerAuth
// @Param       place_id query string true "Place ID"
// @Success     200 {object} places.Details "Resolved address"
// @Failure     400 {object} ErrorResponse "Missing place ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Lookup unavailable"
// @Router      /places/details [get]
func (h *PlacesHandler) GetDetails(c *gin.Context) {
	details, err := h.placesClient.GetDetails(c.Request.Context(), c.Query("place_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"details": details})
}
