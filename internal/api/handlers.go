package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"maitred/internal/assistant"
	"maitred/internal/cart"
	"maitred/internal/models"
	"maitred/internal/ordering"
)

// MessageRequest is one customer message
type MessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// ScenarioInfo describes an evaluation scenario
type ScenarioInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cases       int    `json:"cases"`
}

// CartResponse is a session's cart with its rendered summary
type CartResponse struct {
	SessionID string            `json:"session_id"`
	Cart      []models.CartLine `json:"cart"`
	Summary   string            `json:"summary"`
}

// ReconcileResponse is the outcome of a raw draft with its customer messages
type ReconcileResponse struct {
	*ordering.Result
	Messages []string `json:"messages"`
}

// handleMenu returns the catalog
func (s *Server) handleMenu(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Items())
}

// handleCreateSession starts a session with an empty cart
func (s *Server) handleCreateSession(c *gin.Context) {
	id := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// handleGetCart returns the session's current cart
func (s *Server) handleGetCart(c *gin.Context) {
	id := c.Param("id")
	snapshot, err := s.sessions.Snapshot(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	lines := snapshot.Lines()
	c.JSON(http.StatusOK, CartResponse{SessionID: id, Cart: lines, Summary: ordering.Summary(lines)})
}

// handleClearCart empties the session's cart
func (s *Server) handleClearCart(c *gin.Context) {
	id := c.Param("id")
	err := s.sessions.Update(id, func(crt *cart.Cart) error {
		crt.Clear()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	lines := []models.CartLine{}
	c.JSON(http.StatusOK, CartResponse{SessionID: id, Cart: lines, Summary: ordering.Summary(lines)})
}

// handleMessage runs one assistant turn
func (s *Server) handleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := s.assistant.Handle(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// handleReconcile applies an already structured draft, bypassing extraction
func (s *Server) handleReconcile(c *gin.Context) {
	var draft models.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.assistant.Reconcile(c.Request.Context(), c.Param("id"), draft)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ReconcileResponse{Result: res, Messages: ordering.Reporter{}.Report(res)})
}

// handleCheckout places the order for the session's cart
func (s *Server) handleCheckout(c *gin.Context) {
	reply, err := s.assistant.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	status := http.StatusOK
	if reply.Checkout != nil && !reply.Checkout.Success {
		status = http.StatusConflict
	}
	c.JSON(status, reply)
}

// handleListScenarios returns the available evaluation scenarios
func (s *Server) handleListScenarios(c *gin.Context) {
	scenarios := s.evaluator.GetScenarios()
	out := make([]ScenarioInfo, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, ScenarioInfo{
			ID:          sc.ID,
			Name:        sc.Name,
			Description: sc.Description,
			Cases:       len(sc.Cases),
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleEvaluate runs one scenario, or all of them when none is named. A full
// run also updates the accuracy gauges.
func (s *Server) handleEvaluate(c *gin.Context) {
	ctx := c.Request.Context()

	if id := c.Query("scenario"); id != "" {
		if !s.evaluator.HasScenario(id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scenario: " + id})
			return
		}
		result, err := s.evaluator.Evaluate(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	results, accuracy, err := s.evaluator.EvaluateAll(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordEvaluation(accuracy)
	}
	c.JSON(http.StatusOK, gin.H{"accuracy": accuracy, "results": results})
}

// handleStats returns current counters
func (s *Server) handleStats(c *gin.Context) {
	stats := map[string]interface{}{}
	if s.metrics != nil {
		snapshot, err := s.metrics.Snapshot()
		if err != nil {
			s.fail(c, err)
			return
		}
		stats = snapshot
	}
	stats["active_sessions"] = s.sessions.Len()
	c.JSON(http.StatusOK, stats)
}

// fail maps domain errors to status codes
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, ordering.ErrMalformedDraft), errors.Is(err, assistant.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("api: request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
