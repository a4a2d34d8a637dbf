package api

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/memory"
)

// SearchResponse is returned by GET /v1/search.
type SearchResponse struct {
	Query string             `json:"query"`
	Hits  []memory.SearchHit `json:"hits"`
	Count int                `json:"count"`
}

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - limit (optional, default 10, at most 100): number of hits to return
//   - threshold (optional): minimum similarity, exclusive
//   - project_id, user_id, agent_id, message_type (optional): scope filters
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	q := memory.SearchQuery{
		Query:       query,
		ProjectID:   c.Query("project_id"),
		UserID:      c.Query("user_id"),
		AgentID:     c.Query("agent_id"),
		MessageType: c.Query("message_type"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > memory.MaxSearchLimit {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: fmt.Sprintf("limit must be an integer between 1 and %d", memory.MaxSearchLimit),
			})
		}
		q.Limit = parsed
	}

	if thresholdStr := c.Query("threshold"); thresholdStr != "" {
		parsed, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "threshold must be a number between 0 and 1",
			})
		}
		q.SimilarityThreshold = &parsed
	}

	hits, err := s.engine.SearchMemories(c.UserContext(), q)
	if err != nil {
		return s.engineError(c, "search", err)
	}
	if hits == nil {
		hits = []memory.SearchHit{}
	}

	return c.JSON(SearchResponse{Query: query, Hits: hits, Count: len(hits)})
}
