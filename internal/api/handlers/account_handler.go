package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/service"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

type AccountHandler struct {
	s          service.SocialAccountService
	automation service.AutomationService
}

func NewAccountHandler(s service.SocialAccountService, automation service.AutomationService) *AccountHandler {
	return &AccountHandler{s: s, automation: automation}
}

type accountResponse struct {
	ID             int64   `json:"id"`
	IGUserID       string  `json:"ig_user_id"`
	Username       string  `json:"username,omitempty"`
	Niche          string  `json:"niche,omitempty"`
	TokenExpiresAt *string `json:"token_expires_at,omitempty"`
}

// toAccountResponse never exposes the stored access token.
func toAccountResponse(acc *models.SocialAccount) accountResponse {
	res := accountResponse{
		ID:       acc.ID,
		IGUserID: acc.IGUserID,
		Username: acc.Username,
		Niche:    acc.Niche,
	}
	if acc.TokenExpiresAt != nil {
		exp := acc.TokenExpiresAt.UTC().Format(time.RFC3339)
		res.TokenExpiresAt = &exp
	}
	return res
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req transfer.AccountCreation
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	acc, err := h.s.Create(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAccountResponse(acc))
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	accounts, err := h.s.List(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}

	res := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		res = append(res, toAccountResponse(acc))
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *AccountHandler) GetAutomation(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	st, err := h.automation.Get(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(st)
}

func (h *AccountHandler) UpdateAutomation(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	var req transfer.AutomationUpdate
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	st, err := h.automation.Set(c.Context(), id, &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(st)
}
