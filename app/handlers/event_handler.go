package handlers

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	businessflow "github.com/peykaro/whatsapp-dispatch/business_flow"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
)

// EventHandlerInterface defines the contract for document event handlers
type EventHandlerInterface interface {
	DocumentEvent(c fiber.Ctx) error
}

// EventHandler ingests document change events, mirrors the snapshot,
// and runs the matching notification rules.
type EventHandler struct {
	flow      businessflow.NotificationFlow
	documents repository.BusinessDocumentRepository
	validator *validator.Validate
}

func NewEventHandler(flow businessflow.NotificationFlow, documents repository.BusinessDocumentRepository) *EventHandler {
	return &EventHandler{
		flow:      flow,
		documents: documents,
		validator: validator.New(),
	}
}

func (h *EventHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// DocumentEvent processes one document change
// @Summary Ingest Document Event
// @Tags Events
// @Accept json
// @Produce json
// @Param request body dto.DocumentEventRequest true "Document event"
// @Success 200 {object} dto.APIResponse "Event processed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/events/document [post]
func (h *EventHandler) DocumentEvent(c fiber.Ctx) error {
	var req dto.DocumentEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", nil)
	}

	ctx := requestContext(c, "/api/v1/events/document", 30*time.Second)

	// Keep the mirror current so date-based rules can find the document later
	doc, err := h.documents.ByDoctypeName(ctx, req.Doctype, req.Name)
	if err == nil {
		if doc == nil {
			doc = &models.BusinessDocument{Doctype: req.Doctype, Name: req.Name, Fields: req.Fields}
			err = h.documents.Save(ctx, doc)
		} else {
			doc.Fields = req.Fields
			err = h.documents.Update(ctx, doc)
		}
	}
	if err != nil {
		log.Println("Document mirror update failed", err)
	}

	snapshot := &businessflow.DocumentSnapshot{
		Doctype:  req.Doctype,
		Name:     req.Name,
		Fields:   req.Fields,
		Previous: req.Previous,
	}
	if err := h.flow.ProcessEvent(ctx, models.NotificationEvent(req.Event), snapshot); err != nil {
		log.Println("Process document event failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Event processing failed", "INTERNAL_ERROR", nil)
	}

	return c.Status(fiber.StatusOK).JSON(dto.APIResponse{Success: true, Message: "Event processed"})
}
