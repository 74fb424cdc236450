package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/adequacy"
	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/internal/storage/sqlite"
	"github.com/draftpilot/backend/pkg/logger"
)

type AdequacyHandler struct {
	scorer *adequacy.Scorer
	db     *sqlite.Client
}

func NewAdequacyHandler(scorer *adequacy.Scorer, db *sqlite.Client) *AdequacyHandler {
	return &AdequacyHandler{scorer: scorer, db: db}
}

type adequacyRequest struct {
	TargetDurationSeconds int             `json:"target_duration_seconds"`
	Sources               []models.Source `json:"sources,omitempty"`
}

// ScoreAdequacy computes the research-adequacy verdict for a target
// output duration, over the stored source set unless the request
// carries sources inline.
func (h *AdequacyHandler) ScoreAdequacy(c *fiber.Ctx) error {
	var req adequacyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.TargetDurationSeconds <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "target_duration_seconds must be positive",
		})
	}

	sources := req.Sources
	if sources == nil {
		var err error
		sources, err = h.db.ListSources()
		if err != nil {
			logger.Error("Failed to load sources for adequacy scoring", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load sources",
			})
		}
	}

	score, applicable := h.scorer.Score(sources, req.TargetDurationSeconds)
	if !applicable {
		return c.JSON(fiber.Map{
			"applicable": false,
		})
	}

	return c.JSON(fiber.Map{
		"applicable": true,
		"score":      score,
	})
}
