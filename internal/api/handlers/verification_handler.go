package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/draftpilot/backend/internal/verification"
)

type VerificationHandler struct {
	gate *verification.Gate
}

func NewVerificationHandler(gate *verification.Gate) *VerificationHandler {
	return &VerificationHandler{gate: gate}
}

type verificationRequest struct {
	Text string `json:"text"`
}

// VerifyText runs the accept/reject gate over generated text. The gate
// only supplies the signal; whether to block release is the caller's
// decision.
func (h *VerificationHandler) VerifyText(c *fiber.Ctx) error {
	var req verificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}

	report := h.gate.Validate(req.Text)
	return c.JSON(report)
}
