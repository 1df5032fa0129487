package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/services"
)

// SettingsHandler handles system settings requests. Routes carrying this
// handler are admin-only.
type SettingsHandler struct {
	settingsService services.SettingsServicer
	auditService    services.AuditServicer
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService services.SettingsServicer, auditService services.AuditServicer) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, auditService: auditService}
}

// UpdateSettingRequest represents the request payload for writing a setting.
type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required,max=4096"`
}

// GetSetting returns a single system setting.
// @Summary     Get a setting
// @Description Get a system setting by key (admin only)
// @Tags        settings
// @Produce     json
// @Security    BearerAuth
// @Param       key path string true "Setting key"
// @Success     200 {object} map[string]string "Setting value"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Admin only"
// @Failure     404 {object} ErrorResponse "Setting not found"
// @Router      /admin/settings/{key} [get]
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	value, err := h.settingsService.GetSetting(c.Param("key"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": value})
}

// UpdateSetting creates or updates a system setting.
// @Summary     Update a setting
// @Description Create or update a system setting (admin only)
// @Tags        settings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       key     path string               true "Setting key"
// @Param       request body UpdateSettingRequest true "Setting value"
// @Success     200 {object} map[string]string "Setting stored"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Admin only"
// @Router      /admin/settings/{key} [put]
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	key := c.Param("key")
	if err := h.settingsService.SetSetting(key, req.Value); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_SETTING", "setting", key, c.ClientIP(),
		map[string]interface{}{"value": req.Value})

	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
