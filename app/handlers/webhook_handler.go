package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// WebhookHandlerInterface defines the contract for gateway webhook handlers
type WebhookHandlerInterface interface {
	Evolution(c fiber.Ctx) error
}

// WebhookHandler translates inbound gateway callbacks into incoming
// message rows. The gateway retries on non-2xx, so malformed payloads
// are acknowledged rather than rejected.
type WebhookHandler struct {
	messages repository.WhatsAppMessageRepository
}

func NewWebhookHandler(messages repository.WhatsAppMessageRepository) *WebhookHandler {
	return &WebhookHandler{messages: messages}
}

// Evolution ingests an inbound message callback
// @Summary Evolution Webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param request body dto.WebhookMessageRequest true "Inbound message"
// @Success 200 {object} dto.APIResponse "Acknowledged"
// @Router /api/v1/webhook/evolution [post]
func (h *WebhookHandler) Evolution(c fiber.Ctx) error {
	ack := func() error {
		return c.Status(fiber.StatusOK).JSON(dto.APIResponse{Success: true, Message: "Acknowledged"})
	}

	var req dto.WebhookMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ack()
	}

	from := utils.NormalizePhone(req.From)
	if !utils.LooksLikePhone(from) || req.Text == "" {
		return ack()
	}

	msg := &models.WhatsAppMessage{
		Direction: models.MessageDirectionIncoming,
		Kind:      models.MessageKindText,
		Status:    models.MessageStatusSuccess,
		ToNumber:  from,
		Content:   req.Text,
	}
	if req.ID != "" {
		msg.ProviderMessageID = &req.ID
	}
	if req.Timestamp > 0 {
		msg.CreatedAt = time.Unix(req.Timestamp, 0).UTC()
	}

	ctx := requestContext(c, "/api/v1/webhook/evolution", 10*time.Second)
	if err := h.messages.Save(ctx, msg); err != nil {
		// Ack anyway; a storage hiccup should not make the gateway loop
		log.Println("Webhook persist failed", err)
	}
	return ack()
}
