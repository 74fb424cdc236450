package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/chunker"
	"github.com/draftpilot/backend/internal/extraction"
	"github.com/draftpilot/backend/internal/metrics"
	"github.com/draftpilot/backend/internal/storage/sqlite"
	"github.com/draftpilot/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *chunker.Processor
	preflight *chunker.Preflight
	db        *sqlite.Client
}

func NewDocumentHandler(processor *chunker.Processor, preflight *chunker.Preflight, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		preflight: preflight,
		db:        db,
	}
}

// UploadDocument ingests one uploaded file into a chunked, quality
// scored document source.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file upload is required",
		})
	}

	fd := chunker.FileDescriptor{
		FileName:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		SizeBytes: fileHeader.Size,
	}

	if violations := h.preflight.Validate(fd); len(violations) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": violations,
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}

	processed, err := h.processor.Process(fd, raw)
	if err != nil {
		if errors.Is(err, extraction.ErrUnavailable) {
			// explicit failure, never placeholder content
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "No text extractor is available for this file type",
			})
		}
		logger.Error("Failed to process document", zap.String("file", fd.FileName), zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Failed to extract text from the uploaded file",
		})
	}

	if err := h.db.InsertSource(&processed.Source); err != nil {
		logger.Error("Failed to persist document source", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store document",
		})
	}

	if err := h.db.InsertChunks(processed.Source.ID, processed.Chunks); err != nil {
		logger.Error("Failed to persist chunks", zap.String("source_id", processed.Source.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store document chunks",
		})
	}

	metrics.DocumentsProcessed.Inc()
	metrics.ChunksCreated.Add(float64(len(processed.Chunks)))

	return c.JSON(fiber.Map{
		"source":   processed.Source,
		"metadata": processed.Metadata,
	})
}
