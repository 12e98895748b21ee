package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics"`
}

// ClientRequest represents a client create/update request
type ClientRequest struct {
	Name   string `json:"name" binding:"required"`
	AFM    string `json:"afm" binding:"required"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Active *bool  `json:"active"`
}

// ObligationTypeRequest represents an obligation type create/update request
type ObligationTypeRequest struct {
	Code                string `json:"code" binding:"required"`
	Name                string `json:"name" binding:"required"`
	Group               string `json:"group"`
	DeadlineDay         int    `json:"deadline_day"`
	DeadlineMonthOffset int    `json:"deadline_month_offset"`
}

// ProfileRequest assigns one obligation type to a client
type ProfileRequest struct {
	ObligationTypeID uint `json:"obligation_type_id" binding:"required"`
}

// ProfileGroupRequest represents a profile group create request
type ProfileGroupRequest struct {
	Name              string `json:"name" binding:"required"`
	ObligationTypeIDs []uint `json:"obligation_type_ids"`
}

// GenerateMonthRequest triggers obligation generation for a period
type GenerateMonthRequest struct {
	Month     int    `json:"month" binding:"required"`
	Year      int    `json:"year" binding:"required"`
	ClientIDs []uint `json:"client_ids"`
}

// BulkAssignRequest assigns obligation types to a set of clients
type BulkAssignRequest struct {
	ClientIDs         []uint `json:"client_ids" binding:"required"`
	ObligationTypeIDs []uint `json:"obligation_type_ids"`
	ProfileGroupIDs   []uint `json:"profile_group_ids"`
	Mode              string `json:"mode"`
	GenerateMonth     int    `json:"generate_month"`
	GenerateYear      int    `json:"generate_year"`
}

// ObligationUpdateRequest updates mutable obligation fields
type ObligationUpdateRequest struct {
	Status           string `json:"status"`
	AssignedTo       string `json:"assigned_to"`
	Notes            string `json:"notes"`
	TimeSpentMinutes *int   `json:"time_spent_minutes"`
}

// CompleteRequest completes a single obligation
type CompleteRequest struct {
	Notes            string `json:"notes"`
	TimeSpentMinutes int    `json:"time_spent_minutes"`
	SendEmail        bool   `json:"send_email"`
}

// TemplateRequest represents an email template create/update request
type TemplateRequest struct {
	Name             string `json:"name" binding:"required"`
	Subject          string `json:"subject" binding:"required"`
	Body             string `json:"body" binding:"required"`
	ObligationTypeID *uint  `json:"obligation_type_id"`
	IsActive         *bool  `json:"is_active"`
}

// RuleRequest represents an automation rule create/update request
type RuleRequest struct {
	Name               string `json:"name" binding:"required"`
	Trigger            string `json:"trigger" binding:"required"`
	Timing             string `json:"timing"`
	DaysBeforeDeadline int    `json:"days_before_deadline"`
	ScheduledTime      string `json:"scheduled_time"`
	TemplateID         *uint  `json:"template_id"`
	ObligationTypeIDs  []uint `json:"obligation_type_ids"`
	IsActive           *bool  `json:"is_active"`
}

// respondError maps a service error to the HTTP error contract.
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperr.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, apperr.ErrDuplicate):
		status, code = http.StatusConflict, "duplicate"
	case errors.Is(err, apperr.ErrAttachment):
		status, code = http.StatusInternalServerError, "attachment_error"
	}
	if message == "" {
		message = err.Error()
	}
	c.JSON(status, ErrorResponse{Error: code, Message: message, Code: status})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
