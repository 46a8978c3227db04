package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunSubmitRequest represents a run submission request
type RunSubmitRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// RunSubmitResponse represents a run submission response
type RunSubmitResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": gin.H{
			"pipeline": "ok",
		},
	})
}

// handleSubmitRun handles run submission. Execution is asynchronous:
// the run id is returned immediately.
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req RunSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	runID, err := s.engine.Submit(c.Request.Context(), req.Topic)
	if err != nil {
		s.logger.Error("failed to submit run", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, RunSubmitResponse{
		RunID:       runID,
		Status:      "running",
		SubmittedAt: time.Now().Format(time.RFC3339),
	})
}

// handleGetStatus handles getting run status
func (s *Server) handleGetStatus(c *gin.Context) {
	runID := c.Param("id")

	status, err := s.engine.Status(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleGetResult handles getting the terminal result of a run
func (s *Server) handleGetResult(c *gin.Context) {
	runID := c.Param("id")

	if status, err := s.engine.Status(c.Request.Context(), runID); err == nil && status.Status == "running" {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_COMPLETED",
				Message: "Run not yet completed",
			},
		})
		return
	}

	snapshot, err := s.engine.Result(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// handleCancelRun handles run cancellation
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.engine.Cancel(c.Request.Context(), runID); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       runID,
		"status":       "cancelling",
		"cancelled_at": time.Now().Format(time.RFC3339),
	})
}
