// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("user_role", validateUserRole)
		_ = v.RegisterValidation("proposal_status", validateProposalStatus)
		_ = v.RegisterValidation("capacity_unit", validateCapacityUnit)
		_ = v.RegisterValidation("notification_type", validateNotificationType)
	}
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "admin", "agent", "client":
		return true
	}
	return false
}

func validateProposalStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "draft", "pending", "approved", "rejected":
		return true
	}
	return false
}

func validateCapacityUnit(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "kWp", "MWp":
		return true
	}
	return false
}

func validateNotificationType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "proposal_approved", "proposal_rejected", "proposal_archived", "proposal_received":
		return true
	}
	return false
}
