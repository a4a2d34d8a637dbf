package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/memory"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AddMessageResponse is returned by POST /v1/messages.
type AddMessageResponse struct {
	ID string `json:"id"`
}

// CleanupRequest is the optional body of POST /v1/cleanup.
type CleanupRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAddMessage records a message in its conversation buffer.
func (s *Server) handleAddMessage(c *fiber.Ctx) error {
	var in memory.MessageInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.engine.AddMessage(c.UserContext(), in)
	if err != nil {
		return s.engineError(c, "add message", err)
	}

	return c.Status(fiber.StatusCreated).JSON(AddMessageResponse{ID: id})
}

// handleBuildContext assembles a context window for a conversation.
func (s *Server) handleBuildContext(c *fiber.Ctx) error {
	var req memory.ContextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation_id is required"})
	}
	if req.MaxTokens < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "max_tokens must not be negative"})
	}

	w, err := s.engine.BuildContext(c.UserContext(), req)
	if err != nil {
		return s.engineError(c, "build context", err)
	}

	return c.JSON(w)
}

// handleCleanup removes entities older than the requested number of days.
func (s *Server) handleCleanup(c *fiber.Ctx) error {
	days := s.config.RetentionDays

	if len(c.Body()) > 0 {
		var req CleanupRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
		if req.OlderThanDays != nil {
			days = *req.OlderThanDays
		}
	}

	res, err := s.engine.Cleanup(c.UserContext(), days)
	if err != nil {
		return s.engineError(c, "cleanup", err)
	}

	return c.JSON(res)
}

// handleStats returns engine statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.engine.Stats())
}

// handleExportSnapshot returns a snapshot of every stored message and summary.
func (s *Server) handleExportSnapshot(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

// handleImportSnapshot replaces the engine state with the posted snapshot.
func (s *Server) handleImportSnapshot(c *fiber.Ctx) error {
	var snap memory.Snapshot
	if err := c.BodyParser(&snap); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid snapshot body"})
	}

	if err := s.engine.Restore(c.UserContext(), &snap); err != nil {
		return s.engineError(c, "restore snapshot", err)
	}

	return c.JSON(s.engine.Stats())
}

func (s *Server) engineError(c *fiber.Ctx, op string, err error) error {
	if errors.Is(err, memory.ErrInvalidInput) || errors.Is(err, memory.ErrUnsupportedSnapshot) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Error("request failed", "op", op, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: op + " failed"})
}
