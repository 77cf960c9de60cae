// Package workflow expose the trigger endpoints of the onboarding engine:
// lifecycle event ingestion, manual sweep runs and candidate timelines.
package workflow

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/agent"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/events"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/scheduler"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/utilities"
)

// WorkflowController bundle the agent, scheduler and event log behind
// the HTTP surface.
type WorkflowController struct {
	DB        *database.DBinstanceStruct
	Agent     *agent.Agent
	Scheduler *scheduler.Scheduler
	Events    *events.Log
}

// NewWorkflowController construct controller with shared engine instances.
func NewWorkflowController(db *database.DBinstanceStruct) *WorkflowController {
	return &WorkflowController{
		DB:        db,
		Agent:     agent.New(db),
		Scheduler: scheduler.New(db),
		Events:    events.NewLog(db),
	}
}

// HandleLifecycleEvent receives one candidate lifecycle event from the
// action layer and runs the matching automation.
func (w *WorkflowController) HandleLifecycleEvent(c *gin.Context) {
	var ev agent.LifecycleEvent

	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: fmt.Sprintf("Invalid lifecycle event: %s", err.Error()),
		})
		return
	}

	if err := w.Agent.Handle(ev); err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: fmt.Sprintf("Failed to process event: %s", err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, utilities.MessageResponse{
		Message: "Event processed",
	})
}

// RunSweep triggers one scheduler pass over every location and reports
// how many reminders, escalations and no-response transitions happened.
func (w *WorkflowController) RunSweep(c *gin.Context) {
	result, err := w.Scheduler.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: fmt.Sprintf("Sweep failed: %s", err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCandidateEvents returns the audit timeline of one candidate,
// newest first.
func (w *WorkflowController) GetCandidateEvents(c *gin.Context) {
	candidateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Invalid candidate id",
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
				Error: "Invalid limit",
			})
			return
		}
		limit = parsed
	}

	timeline, err := w.Events.ListForCandidate(candidateID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: fmt.Sprintf("Failed to load events: %s", err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": timeline})
}
