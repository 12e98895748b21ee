// Package handler exposes the engine over a JSON HTTP API.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/automation"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/engine"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/scheduler"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/store"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store     *store.Store
	generator *engine.Generator
	lifecycle *engine.Lifecycle
	evaluator *automation.Evaluator
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(s *store.Store, g *engine.Generator, l *engine.Lifecycle, e *automation.Evaluator, sch *scheduler.Scheduler, m *metrics.Metrics) *Handlers {
	return &Handlers{
		store:     s,
		generator: g,
		lifecycle: l,
		evaluator: e,
		scheduler: sch,
		metrics:   m,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		// Clients and obligation profiles
		api.GET("/clients", h.GetClients)
		api.POST("/clients", h.CreateClient)
		api.GET("/clients/:id", h.GetClient)
		api.PUT("/clients/:id", h.UpdateClient)
		api.DELETE("/clients/:id", h.DeleteClient)
		api.GET("/clients/:id/profiles", h.GetClientProfiles)
		api.POST("/clients/:id/profiles", h.AddClientProfile)
		api.DELETE("/clients/:id/profiles/:typeID", h.RemoveClientProfile)

		// Obligation types and profile groups
		api.GET("/obligation-types", h.GetObligationTypes)
		api.POST("/obligation-types", h.CreateObligationType)
		api.GET("/obligation-types/:id", h.GetObligationType)
		api.PUT("/obligation-types/:id", h.UpdateObligationType)
		api.DELETE("/obligation-types/:id", h.DeleteObligationType)
		api.GET("/profile-groups", h.GetProfileGroups)
		api.POST("/profile-groups", h.CreateProfileGroup)

		// Obligations
		api.POST("/obligations/generate-month", h.GenerateMonth)
		api.POST("/obligations/bulk-assign", h.BulkAssign)
		api.POST("/obligations/bulk-complete-with-documents", h.BulkCompleteWithDocuments)
		api.GET("/obligations", h.GetObligations)
		api.GET("/obligations/:id", h.GetObligation)
		api.PUT("/obligations/:id", h.UpdateObligation)
		api.POST("/obligations/:id/complete", h.CompleteObligation)

		// Documents
		api.GET("/documents/:id", h.GetDocument)

		// Email automation
		api.GET("/email/templates", h.GetTemplates)
		api.POST("/email/templates", h.CreateTemplate)
		api.GET("/email/templates/:id", h.GetTemplate)
		api.PUT("/email/templates/:id", h.UpdateTemplate)
		api.DELETE("/email/templates/:id", h.DeleteTemplate)
		api.GET("/email/automation-rules", h.GetRules)
		api.POST("/email/automation-rules", h.CreateRule)
		api.GET("/email/automation-rules/:id", h.GetRule)
		api.PUT("/email/automation-rules/:id", h.UpdateRule)
		api.DELETE("/email/automation-rules/:id", h.DeleteRule)
		api.GET("/email/logs", h.GetEmailLogs)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-deadline-sweep", h.RunDeadlineSweep)
		api.POST("/scheduler/run-overdue-sweep", h.RunOverdueSweep)
		api.POST("/scheduler/run-dispatch", h.RunDispatch)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.store.DB().Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_deadline_sweep"] = h.scheduler.NextDeadlineSweep().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// paramID parses the numeric path parameter named key.
func paramID(c *gin.Context, key string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(key))
	if err != nil || id < 1 {
		badRequest(c, "Invalid "+key)
		return 0, false
	}
	return uint(id), true
}
