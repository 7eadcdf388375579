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

// BulkHandlerInterface defines the contract for bulk send handlers
type BulkHandlerInterface interface {
	Create(c fiber.Ctx) error
	Start(c fiber.Ctx) error
	Retry(c fiber.Ctx) error
	Progress(c fiber.Ctx) error
}

// BulkHandler handles bulk fan-out HTTP requests
type BulkHandler struct {
	flow      businessflow.BulkFlow
	validator *validator.Validate
}

func NewBulkHandler(flow businessflow.BulkFlow) *BulkHandler {
	return &BulkHandler{flow: flow, validator: validator.New()}
}

func (h *BulkHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BulkHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Create stages a bulk send
// @Summary Create Bulk Send
// @Tags Bulk
// @Accept json
// @Produce json
// @Param request body dto.CreateBulkRequest true "Bulk send definition"
// @Success 201 {object} dto.APIResponse{data=dto.BulkMessageDTO} "Bulk send created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Recipient list or template not found"
// @Router /api/v1/bulk [post]
func (h *BulkHandler) Create(c fiber.Ctx) error {
	var req dto.CreateBulkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", nil)
	}

	bulk, err := h.flow.Create(requestContext(c, "/api/v1/bulk", 10*time.Second), &req)
	if err != nil {
		return h.translateBulkError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Bulk send created", toBulkDTO(bulk))
}

// Start enqueues the fan-out
// @Summary Start Bulk Send
// @Tags Bulk
// @Produce json
// @Param id path string true "Bulk send UUID"
// @Success 202 {object} dto.APIResponse "Bulk send started"
// @Failure 404 {object} dto.APIResponse "Bulk send not found"
// @Failure 409 {object} dto.APIResponse "Bulk send not startable"
// @Router /api/v1/bulk/{id}/start [post]
func (h *BulkHandler) Start(c fiber.Ctx) error {
	if err := h.flow.Start(requestContext(c, "/api/v1/bulk/:id/start", 10*time.Second), c.Params("id")); err != nil {
		return h.translateBulkError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Bulk send started", nil)
}

// Retry requeues the failed recipients of a finished run
// @Summary Retry Bulk Failures
// @Tags Bulk
// @Produce json
// @Param id path string true "Bulk send UUID"
// @Success 202 {object} dto.APIResponse "Retry started"
// @Failure 404 {object} dto.APIResponse "Bulk send not found"
// @Router /api/v1/bulk/{id}/retry [post]
func (h *BulkHandler) Retry(c fiber.Ctx) error {
	if err := h.flow.RetryFailed(requestContext(c, "/api/v1/bulk/:id/retry", 10*time.Second), c.Params("id")); err != nil {
		return h.translateBulkError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Retry started", nil)
}

// Progress reports the run summary
// @Summary Bulk Send Progress
// @Tags Bulk
// @Produce json
// @Param id path string true "Bulk send UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BulkProgressDTO} "Progress"
// @Failure 404 {object} dto.APIResponse "Bulk send not found"
// @Router /api/v1/bulk/{id} [get]
func (h *BulkHandler) Progress(c fiber.Ctx) error {
	progress, err := h.flow.Progress(requestContext(c, "/api/v1/bulk/:id", 10*time.Second), c.Params("id"))
	if err != nil {
		return h.translateBulkError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Progress", progress)
}

func (h *BulkHandler) translateBulkError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsBulkNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Bulk send not found", "BULK_NOT_FOUND", nil)
	case businessflow.IsBulkNotStartable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Bulk send is not in a startable state", "BULK_NOT_STARTABLE", nil)
	case businessflow.IsRecipientListNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Recipient list not found", "LIST_NOT_FOUND", nil)
	case businessflow.IsTemplateNotFound(err), businessflow.IsTemplateDisabled(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", nil)
	case businessflow.IsAccountNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	default:
		log.Println("Bulk operation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Bulk operation failed", "INTERNAL_ERROR", nil)
	}
}

func toBulkDTO(bulk *models.BulkMessage) *dto.BulkMessageDTO {
	return &dto.BulkMessageDTO{
		UUID:         bulk.UUID.String(),
		Status:       bulk.Status.String(),
		DelaySeconds: bulk.DelaySeconds,
		SentCount:    bulk.SentCount,
		FailedCount:  bulk.FailedCount,
	}
}
