// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	businessflow "github.com/peykaro/whatsapp-dispatch/business_flow"
	"github.com/peykaro/whatsapp-dispatch/models"
)

// MessageHandlerInterface defines the contract for outgoing message handlers
type MessageHandlerInterface interface {
	SendTemplate(c fiber.Ctx) error
	SendCustom(c fiber.Ctx) error
	Preview(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Retry(c fiber.Ctx) error
}

// MessageHandler handles outgoing message HTTP requests
type MessageHandler struct {
	flow      businessflow.DispatchFlow
	validator *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(flow businessflow.DispatchFlow) *MessageHandler {
	return &MessageHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *MessageHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MessageHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *MessageHandler) validationErrors(err error) []string {
	var messages []string
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range errs {
			messages = append(messages, getValidationErrorMessage(fieldErr))
		}
	}
	return messages
}

// SendTemplate queues a template message
// @Summary Send Template Message
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body dto.SendTemplateRequest true "Template send request"
// @Success 202 {object} dto.APIResponse{data=dto.QueueResponse} "Message queued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Template or account not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/template [post]
func (h *MessageHandler) SendTemplate(c fiber.Ctx) error {
	var req dto.SendTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", h.validationErrors(err))
	}

	resp, err := h.flow.SendTemplate(h.createRequestContext(c, "/api/v1/messages/template"), &req)
	if err != nil {
		return h.translateSendError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Message queued", resp)
}

// SendCustom queues a free-form message
// @Summary Send Custom Message
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body dto.SendCustomRequest true "Custom send request"
// @Success 202 {object} dto.APIResponse{data=dto.QueueResponse} "Message queued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/custom [post]
func (h *MessageHandler) SendCustom(c fiber.Ctx) error {
	var req dto.SendCustomRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", h.validationErrors(err))
	}

	resp, err := h.flow.SendCustom(h.createRequestContext(c, "/api/v1/messages/custom"), &req)
	if err != nil {
		return h.translateSendError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Message queued", resp)
}

// Preview renders a template without sending
// @Summary Preview Template
// @Tags Messages
// @Produce json
// @Param template_name query string true "Template name"
// @Param body_params query string false "Body params JSON"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewResponse} "Rendered preview"
// @Failure 404 {object} dto.APIResponse "Template not found"
// @Router /api/v1/messages/preview [get]
func (h *MessageHandler) Preview(c fiber.Ctx) error {
	req := dto.PreviewRequest{
		TemplateName: c.Query("template_name"),
		BodyParams:   c.Query("body_params"),
	}
	if req.TemplateName == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "template_name is required", "VALIDATION_ERROR", nil)
	}

	resp, err := h.flow.Preview(h.createRequestContext(c, "/api/v1/messages/preview"), &req)
	if err != nil {
		if businessflow.IsTemplateNotFound(err) || businessflow.IsTemplateDisabled(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", nil)
		}
		log.Println("Preview template failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Preview failed", "INTERNAL_ERROR", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Preview rendered", resp)
}

// Get returns the tracking record for a message
// @Summary Get Message
// @Tags Messages
// @Produce json
// @Param id path string true "Message tracking UUID"
// @Success 200 {object} dto.APIResponse{data=dto.MessageDTO} "Message found"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Router /api/v1/messages/{id} [get]
func (h *MessageHandler) Get(c fiber.Ctx) error {
	id := c.Params("id")
	msg, err := h.flow.GetMessage(h.createRequestContext(c, "/api/v1/messages/:id"), id)
	if err != nil {
		if businessflow.IsMessageNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", nil)
		}
		log.Println("Get message failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Lookup failed", "INTERNAL_ERROR", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Message found", toMessageDTO(msg))
}

// Retry requeues a failed message
// @Summary Retry Failed Message
// @Tags Messages
// @Produce json
// @Param id path string true "Message tracking UUID"
// @Success 202 {object} dto.APIResponse{data=dto.QueueResponse} "Message requeued"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Failure 409 {object} dto.APIResponse "Message not retryable"
// @Router /api/v1/messages/{id}/retry [post]
func (h *MessageHandler) Retry(c fiber.Ctx) error {
	id := c.Params("id")
	resp, err := h.flow.RetryFailed(h.createRequestContext(c, "/api/v1/messages/:id/retry"), id)
	if err != nil {
		if businessflow.IsMessageNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", nil)
		}
		if businessflow.IsMessageNotRetryable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Only failed outgoing messages can be retried", "MESSAGE_NOT_RETRYABLE", nil)
		}
		log.Println("Retry message failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Retry failed", "INTERNAL_ERROR", nil)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Message requeued", resp)
}

func (h *MessageHandler) translateSendError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsTemplateNotFound(err), businessflow.IsTemplateDisabled(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", nil)
	case businessflow.IsAccountNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsNoRecipient(err), businessflow.IsInvalidRecipient(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "No valid recipient", "NO_RECIPIENT", nil)
	default:
		log.Println("Send message failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Send failed", "INTERNAL_ERROR", nil)
	}
}

func toMessageDTO(msg *models.WhatsAppMessage) *dto.MessageDTO {
	return &dto.MessageDTO{
		UUID:              msg.UUID.String(),
		Direction:         msg.Direction.String(),
		Kind:              msg.Kind.String(),
		Status:            msg.Status.String(),
		ToNumber:          msg.ToNumber,
		Content:           msg.Content,
		MediaURL:          msg.MediaURL,
		RefDoctype:        msg.RefDoctype,
		RefDocname:        msg.RefDocname,
		ProviderMessageID: msg.ProviderMessageID,
		ErrorDetail:       msg.ErrorDetail,
		CreatedAt:         msg.CreatedAt,
		UpdatedAt:         msg.UpdatedAt,
	}
}

func (h *MessageHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return requestContext(c, endpoint, 10*time.Second)
}
