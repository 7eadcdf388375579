package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	businessflow "github.com/peykaro/whatsapp-dispatch/business_flow"
)

// RecipientListHandlerInterface defines the contract for recipient list handlers
type RecipientListHandlerInterface interface {
	Create(c fiber.Ctx) error
	Import(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Remove(c fiber.Ctx) error
}

// RecipientListHandler handles recipient list HTTP requests
type RecipientListHandler struct {
	flow businessflow.RecipientListFlow
}

func NewRecipientListHandler(flow businessflow.RecipientListFlow) *RecipientListHandler {
	return &RecipientListHandler{flow: flow}
}

func (h *RecipientListHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RecipientListHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Create creates an empty recipient list
// @Summary Create Recipient List
// @Tags RecipientLists
// @Accept json
// @Produce json
// @Success 201 {object} dto.APIResponse "List created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/recipient-lists [post]
func (h *RecipientListHandler) Create(c fiber.Ctx) error {
	var req struct {
		Name          string `json:"name"`
		SourceDoctype string `json:"source_doctype,omitempty"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	list, err := h.flow.CreateList(requestContext(c, "/api/v1/recipient-lists", 10*time.Second), req.Name, req.SourceDoctype)
	if err != nil {
		return h.translateListError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Recipient list created", list)
}

// Import loads recipients from an uploaded spreadsheet
// @Summary Import Recipients
// @Tags RecipientLists
// @Accept mpfd
// @Produce json
// @Param name path string true "List name"
// @Param file formData file true "Spreadsheet (xlsx)"
// @Success 200 {object} dto.APIResponse{data=dto.ImportRecipientsResponse} "Import summary"
// @Failure 400 {object} dto.APIResponse "Invalid spreadsheet"
// @Failure 404 {object} dto.APIResponse "List not found"
// @Router /api/v1/recipient-lists/{name}/import [post]
func (h *RecipientListHandler) Import(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Spreadsheet file is required", "FILE_REQUIRED", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Could not read uploaded file", "FILE_READ_FAILED", err.Error())
	}
	defer file.Close()

	ctx := requestContext(c, "/api/v1/recipient-lists/:name/import", 30*time.Second)
	result, err := h.flow.ImportXLSX(ctx, c.Params("name"), file)
	if err != nil {
		return h.translateListError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Import finished", result)
}

// Refresh re-pulls numbers from the list's linked contacts
// @Summary Refresh Recipient List
// @Tags RecipientLists
// @Produce json
// @Param name path string true "List name"
// @Success 200 {object} dto.APIResponse{data=dto.ImportRecipientsResponse} "Refresh summary"
// @Failure 404 {object} dto.APIResponse "List not found"
// @Router /api/v1/recipient-lists/{name}/refresh [post]
func (h *RecipientListHandler) Refresh(c fiber.Ctx) error {
	ctx := requestContext(c, "/api/v1/recipient-lists/:name/refresh", 30*time.Second)
	result, err := h.flow.Refresh(ctx, c.Params("name"))
	if err != nil {
		return h.translateListError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Refresh finished", result)
}

// Remove drops one number from the list and records the exclusion
// @Summary Remove Recipient
// @Tags RecipientLists
// @Produce json
// @Param name path string true "List name"
// @Param number path string true "Recipient number"
// @Success 200 {object} dto.APIResponse "Recipient removed"
// @Failure 404 {object} dto.APIResponse "List not found"
// @Router /api/v1/recipient-lists/{name}/recipients/{number} [delete]
func (h *RecipientListHandler) Remove(c fiber.Ctx) error {
	ctx := requestContext(c, "/api/v1/recipient-lists/:name/recipients/:number", 10*time.Second)
	if err := h.flow.RemoveRecipient(ctx, c.Params("name"), c.Params("number")); err != nil {
		return h.translateListError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Recipient removed", nil)
}

func (h *RecipientListHandler) translateListError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsRecipientListNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Recipient list not found", "LIST_NOT_FOUND", nil)
	case businessflow.IsInvalidRecipient(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid recipient number", "INVALID_RECIPIENT", nil)
	default:
		if businessErr, ok := businessflow.AsBusinessError(err); ok {
			switch businessErr.Code {
			case "LIST_EXISTS":
				return h.ErrorResponse(c, fiber.StatusConflict, businessErr.Message, businessErr.Code, nil)
			case "LIST_NAME_REQUIRED", "IMPORT_PARSE_FAILED", "IMPORT_EMPTY", "IMPORT_NO_NUMBER_COLUMN", "LIST_NOT_LINKED":
				return h.ErrorResponse(c, fiber.StatusBadRequest, businessErr.Message, businessErr.Code, nil)
			}
		}
		log.Println("Recipient list operation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Operation failed", "INTERNAL_ERROR", nil)
	}
}
