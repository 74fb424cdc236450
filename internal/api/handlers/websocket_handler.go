package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/fetcher"
	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/pkg/logger"
)

// WebSocketHandler streams per-item enrichment outcomes so the UI can
// show progress while a batch settles.
type WebSocketHandler struct {
	fetcher *fetcher.Fetcher
}

func NewWebSocketHandler(f *fetcher.Fetcher) *WebSocketHandler {
	return &WebSocketHandler{fetcher: f}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Sources []struct {
				Locator string `json:"locator"`
				Title   string `json:"title,omitempty"`
			} `json:"sources"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "enrich" || len(msg.Sources) == 0 {
			continue
		}

		ctx := context.Background()
		enriched := make([]models.Source, 0, len(msg.Sources))

		for i, item := range msg.Sources {
			src := h.fetcher.EnrichOne(ctx, models.Source{
				Kind:        models.KindWeb,
				Locator:     item.Locator,
				Title:       item.Title,
				FetchStatus: models.StatusPending,
			})
			enriched = append(enriched, src)

			if err := c.WriteJSON(map[string]any{
				"type":         "item",
				"index":        i,
				"locator":      src.Locator,
				"fetch_status": src.FetchStatus,
				"fetch_error":  src.FetchError,
				"word_count":   src.WordCount,
			}); err != nil {
				logger.Warn("Failed to write WebSocket progress", zap.Error(err))
				return
			}
		}

		stats := h.fetcher.ComputeStats(enriched)
		if err := c.WriteJSON(map[string]any{
			"type":  "complete",
			"stats": stats,
		}); err != nil {
			logger.Warn("Failed to write WebSocket completion", zap.Error(err))
			return
		}
	}
}
