package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mit45/AutoSocial-Ai/internal/service"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

type ContentHandler struct {
	g       service.GeneratorService
	sweeper service.SweeperService
}

func NewContentHandler(g service.GeneratorService, sweeper service.SweeperService) *ContentHandler {
	return &ContentHandler{g: g, sweeper: sweeper}
}

// Generate always produces a draft; auto_publish only enqueues a delayed publish.
func (h *ContentHandler) Generate(c *fiber.Ctx) error {
	var req transfer.GenerateRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}
	req.DuplicateSince = nil

	post, err := h.g.Generate(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *ContentHandler) RenderImage(c *fiber.Ctx) error {
	var req transfer.RenderImageRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	res, err := h.g.RenderImage(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// CheckScheduled runs one sweep on demand.
func (h *ContentHandler) CheckScheduled(c *fiber.Ctx) error {
	res, err := h.sweeper.Sweep(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
