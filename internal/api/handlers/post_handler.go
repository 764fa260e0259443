package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/mit45/AutoSocial-Ai/internal/service"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

type PostHandler struct {
	s  service.PostService
	ps service.PublishService
}

func NewPostHandler(s service.PostService, ps service.PublishService) *PostHandler {
	return &PostHandler{s: s, ps: ps}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.PostCreation
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	post, err := h.s.Create(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), c.Query("status"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	post, err := h.s.Get(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ApprovePost(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	post, err := h.s.Approve(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post approved",
		"post_id": post.ID,
		"status":  post.Status,
	})
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.s.Remove(c.Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post removed",
		"post_id": id,
	})
}

// PublishPost publishes now, or parks the item when scheduled_at is given.
// A failed platform call is still a 200 with success=false.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	return h.publish(c, h.ps.Publish)
}

func (h *PostHandler) RepublishPost(c *fiber.Ctx) error {
	return h.publish(c, h.ps.Republish)
}

func (h *PostHandler) publish(c *fiber.Ctx, fn func(context.Context, *transfer.PublishRequest) (*transfer.PublishResult, error)) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	var req transfer.PublishRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}
	req.PostID = id

	res, err := fn(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
