package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/fetcher"
	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/internal/storage/sqlite"
	"github.com/draftpilot/backend/pkg/logger"
)

type SourceHandler struct {
	fetcher *fetcher.Fetcher
	db      *sqlite.Client
}

func NewSourceHandler(f *fetcher.Fetcher, db *sqlite.Client) *SourceHandler {
	return &SourceHandler{fetcher: f, db: db}
}

type enrichItem struct {
	ID       string `json:"id,omitempty"`
	Locator  string `json:"locator"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Starred  bool   `json:"starred"`
	Selected bool   `json:"selected"`
}

type enrichRequest struct {
	Sources []enrichItem `json:"sources"`
	Persist bool         `json:"persist"`
}

// EnrichSources runs one enrichment batch over candidate web sources.
// Per-item failures come back as item status, never as request errors.
func (h *SourceHandler) EnrichSources(c *fiber.Ctx) error {
	var req enrichRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse enrich request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Sources) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one source is required",
		})
	}

	batch := make([]models.Source, len(req.Sources))
	for i, item := range req.Sources {
		batch[i] = models.Source{
			ID:          item.ID,
			Kind:        models.KindWeb,
			Locator:     item.Locator,
			Title:       item.Title,
			Content:     item.Content,
			Starred:     item.Starred,
			Selected:    item.Selected,
			FetchStatus: models.StatusPending,
		}
	}

	enriched, stats := h.fetcher.FetchBatch(c.Context(), batch)

	if req.Persist {
		h.persist(enriched)
	}

	return c.JSON(fiber.Map{
		"sources": enriched,
		"stats":   stats,
	})
}

// persist stores new sources and applies enrichment to existing ones.
// Storage refusals (already-enriched sources) are logged, not fatal.
func (h *SourceHandler) persist(sources []models.Source) {
	for i := range sources {
		src := &sources[i]
		if src.ID == "" {
			if err := h.db.InsertSource(src); err != nil {
				logger.Error("Failed to persist source", zap.String("locator", src.Locator), zap.Error(err))
			}
			continue
		}

		err := h.db.ApplyEnrichment(src.ID, *src)
		if errors.Is(err, sqlite.ErrAlreadyEnriched) {
			logger.Warn("Source already enriched, skipping update", zap.String("id", src.ID))
		} else if err != nil {
			logger.Error("Failed to apply enrichment", zap.String("id", src.ID), zap.Error(err))
		}
	}
}

func (h *SourceHandler) ListSources(c *fiber.Ctx) error {
	sources, err := h.db.ListSources()
	if err != nil {
		logger.Error("Failed to list sources", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sources",
		})
	}

	return c.JSON(fiber.Map{
		"sources": sources,
		"count":   len(sources),
	})
}
