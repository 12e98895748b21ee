package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StartScheduler starts the background sweeps
func (h *Handlers) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "scheduler_error",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler started"})
}

// StopScheduler stops the background sweeps
func (h *Handlers) StopScheduler(c *gin.Context) {
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler stopped"})
}

// RunDeadlineSweep triggers the before-deadline rule sweep once
func (h *Handlers) RunDeadlineSweep(c *gin.Context) {
	go h.scheduler.RunDeadlineSweepOnce()
	c.JSON(http.StatusAccepted, gin.H{"message": "Deadline sweep triggered"})
}

// RunOverdueSweep triggers overdue detection once
func (h *Handlers) RunOverdueSweep(c *gin.Context) {
	go h.scheduler.RunOverdueSweepOnce()
	c.JSON(http.StatusAccepted, gin.H{"message": "Overdue sweep triggered"})
}

// RunDispatch drains the notification outbox once
func (h *Handlers) RunDispatch(c *gin.Context) {
	go h.scheduler.RunDrainOnce()
	c.JSON(http.StatusAccepted, gin.H{"message": "Dispatch triggered"})
}

// GetSchedulerStatus returns the scheduler state
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	status := gin.H{"running": h.scheduler.IsRunning()}
	if h.scheduler.IsRunning() {
		status["next_deadline_sweep"] = h.scheduler.NextDeadlineSweep().Format(time.RFC3339)
		if last := h.scheduler.LastDeadlineSweep(); !last.IsZero() {
			status["last_deadline_sweep"] = last.Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, status)
}
