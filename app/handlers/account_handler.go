package handlers

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	businessflow "github.com/peykaro/whatsapp-dispatch/business_flow"
	"github.com/peykaro/whatsapp-dispatch/models"
)

// AccountHandlerInterface defines the contract for account handlers
type AccountHandlerInterface interface {
	Save(c fiber.Ctx) error
	Get(c fiber.Ctx) error
}

// AccountHandler handles WhatsApp account HTTP requests
type AccountHandler struct {
	flow      businessflow.AccountFlow
	validator *validator.Validate
}

func NewAccountHandler(flow businessflow.AccountFlow) *AccountHandler {
	return &AccountHandler{flow: flow, validator: validator.New()}
}

func (h *AccountHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AccountHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Save creates or updates an account. Default flags set here are
// cleared from every other account in the same write.
// @Summary Save Account
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body dto.SaveAccountRequest true "Account payload"
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO} "Account saved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/accounts [post]
func (h *AccountHandler) Save(c fiber.Ctx) error {
	var req dto.SaveAccountRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", nil)
	}

	account, err := h.flow.SaveAccount(requestContext(c, "/api/v1/accounts", 10*time.Second), &req)
	if err != nil {
		return h.translateAccountError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Account saved", toAccountDTO(account))
}

// Get returns one account by name
// @Summary Get Account
// @Tags Accounts
// @Produce json
// @Param name path string true "Account name"
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO} "Account found"
// @Failure 404 {object} dto.APIResponse "Account not found"
// @Router /api/v1/accounts/{name} [get]
func (h *AccountHandler) Get(c fiber.Ctx) error {
	account, err := h.flow.GetAccount(requestContext(c, "/api/v1/accounts/:name", 10*time.Second), c.Params("name"))
	if err != nil {
		return h.translateAccountError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Account found", toAccountDTO(account))
}

func (h *AccountHandler) translateAccountError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	default:
		if businessErr, ok := businessflow.AsBusinessError(err); ok && businessErr.Code == "ACCOUNT_NAME_REQUIRED" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, businessErr.Message, businessErr.Code, nil)
		}
		log.Println("Account operation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Operation failed", "INTERNAL_ERROR", nil)
	}
}

func toAccountDTO(a *models.WhatsAppAccount) *dto.AccountDTO {
	return &dto.AccountDTO{
		UUID:            a.UUID.String(),
		Name:            a.Name,
		APIBase:         a.APIBase,
		Instance:        a.Instance,
		Enabled:         a.Enabled,
		IsDefault:       a.IsDefault,
		DefaultOutgoing: a.DefaultOutgoing,
		DefaultIncoming: a.DefaultIncoming,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
