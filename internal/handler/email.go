package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// GetTemplates returns all email templates
func (h *Handlers) GetTemplates(c *gin.Context) {
	templates, err := h.store.ListTemplates()
	if err != nil {
		respondError(c, err, "Failed to fetch templates")
		return
	}
	c.JSON(http.StatusOK, templates)
}

// CreateTemplate creates a new email template
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tpl := model.EmailTemplate{
		Name:             req.Name,
		Subject:          req.Subject,
		Body:             req.Body,
		ObligationTypeID: req.ObligationTypeID,
		IsActive:         active,
	}
	if err := h.store.CreateTemplate(&tpl); err != nil {
		respondError(c, err, "Failed to create template")
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// GetTemplate returns a single email template
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tpl, err := h.store.GetTemplate(id)
	if err != nil {
		respondError(c, err, "Template not found")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// UpdateTemplate updates an existing email template
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	tpl, err := h.store.GetTemplate(id)
	if err != nil {
		respondError(c, err, "Template not found")
		return
	}
	tpl.Name = req.Name
	tpl.Subject = req.Subject
	tpl.Body = req.Body
	tpl.ObligationTypeID = req.ObligationTypeID
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}
	if err := h.store.SaveTemplate(tpl); err != nil {
		respondError(c, err, "Failed to update template")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// DeleteTemplate soft-deletes an email template
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteTemplate(id); err != nil {
		respondError(c, err, "Failed to delete template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

// GetRules returns all automation rules
func (h *Handlers) GetRules(c *gin.Context) {
	rules, err := h.store.ListRules()
	if err != nil {
		respondError(c, err, "Failed to fetch automation rules")
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule creates a new automation rule
func (h *Handlers) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	rule, ok := h.ruleFromRequest(c, req, nil)
	if !ok {
		return
	}
	if err := h.store.CreateRule(rule); err != nil {
		respondError(c, err, "Failed to create automation rule")
		return
	}
	if h.metrics != nil {
		h.metrics.ActiveRules.Inc()
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule returns a single automation rule
func (h *Handlers) GetRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rule, err := h.store.GetRule(id)
	if err != nil {
		respondError(c, err, "Automation rule not found")
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule updates an existing automation rule
func (h *Handlers) UpdateRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	existing, err := h.store.GetRule(id)
	if err != nil {
		respondError(c, err, "Automation rule not found")
		return
	}
	rule, ok := h.ruleFromRequest(c, req, existing)
	if !ok {
		return
	}
	if err := h.store.SaveRule(rule); err != nil {
		respondError(c, err, "Failed to update automation rule")
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule soft-deletes an automation rule
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteRule(id); err != nil {
		respondError(c, err, "Failed to delete automation rule")
		return
	}
	if h.metrics != nil {
		h.metrics.ActiveRules.Dec()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Automation rule deleted"})
}

// ruleFromRequest builds a validated rule, resolving the obligation
// type filter. Passing an existing rule makes it an update in place.
func (h *Handlers) ruleFromRequest(c *gin.Context, req RuleRequest, existing *model.AutomationRule) (*model.AutomationRule, bool) {
	rule := existing
	if rule == nil {
		rule = &model.AutomationRule{IsActive: true}
	}
	rule.Name = req.Name
	rule.Trigger = model.RuleTrigger(req.Trigger)
	rule.Timing = model.TimingImmediate
	if req.Timing != "" {
		rule.Timing = model.RuleTiming(req.Timing)
	}
	rule.DaysBeforeDeadline = req.DaysBeforeDeadline
	rule.ScheduledTime = req.ScheduledTime
	rule.TemplateID = req.TemplateID
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := rule.Validate(); err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	if rule.TemplateID != nil {
		if _, err := h.store.GetTemplate(*rule.TemplateID); err != nil {
			respondError(c, err, "Template not found")
			return nil, false
		}
	}

	types, err := h.store.TypesByID(req.ObligationTypeIDs)
	if err != nil {
		respondError(c, err, "Failed to resolve obligation types")
		return nil, false
	}
	rule.ObligationTypes = rule.ObligationTypes[:0]
	for _, id := range req.ObligationTypeIDs {
		t, found := types[id]
		if !found {
			badRequest(c, "Unknown obligation type in rule filter")
			return nil, false
		}
		rule.ObligationTypes = append(rule.ObligationTypes, t)
	}
	return rule, true
}

// GetEmailLogs returns the email send history, newest first
func (h *Handlers) GetEmailLogs(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	logs, total, err := h.store.ListEmailLogs(offset, limit)
	if err != nil {
		respondError(c, err, "Failed to fetch email logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
