package dto

import (
	"time"
)

// DocumentPayload carries the snapshot of the business document a send
// refers to. Fields hold pre-rendered string values; Previous is only
// set for value-change triggers.
type DocumentPayload struct {
	Doctype  string            `json:"doctype" validate:"required,max=140"`
	Name     string            `json:"name" validate:"required,max=140"`
	Fields   map[string]string `json:"fields,omitempty"`
	Previous map[string]string `json:"previous,omitempty"`
}

// SendTemplateRequest represents the request to queue a template send
type SendTemplateRequest struct {
	TemplateName string `json:"template_name" validate:"required,max=140"`

	// Explicit recipients, separated by comma, semicolon, pipe or
	// newline. When empty the document is resolved instead.
	To string `json:"to,omitempty"`

	// Document field the recipient hint lives in
	RecipientField string `json:"recipient_field,omitempty" validate:"omitempty,max=140"`

	// JSON array or numerically keyed JSON object filling the
	// placeholders directly
	BodyParams string `json:"body_params,omitempty"`

	Document *DocumentPayload `json:"document,omitempty"`

	// Sender account; empty means the default outgoing account
	AccountName string `json:"account_name,omitempty" validate:"omitempty,max=140"`

	DelaySeconds int `json:"delay_seconds,omitempty" validate:"omitempty,min=0,max=86400"`
}

// SendCustomRequest represents the request to queue a free-form send.
// Custom sends always go out through the default outgoing account.
type SendCustomRequest struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text,omitempty"`

	MediaURL  string `json:"media_url,omitempty" validate:"omitempty,url,max=512"`
	MediaType string `json:"media_type,omitempty" validate:"omitempty,max=64"`
	Caption   string `json:"caption,omitempty"`
	FileName  string `json:"file_name,omitempty" validate:"omitempty,max=140"`

	Document *DocumentPayload `json:"document,omitempty"`

	DelaySeconds int `json:"delay_seconds,omitempty" validate:"omitempty,min=0,max=86400"`
}

// QueuedMessageDTO identifies one queued placeholder
type QueuedMessageDTO struct {
	TrackingID string `json:"tracking_id"`
	To         string `json:"to"`
}

// QueueResponse represents the response to a queue operation
type QueueResponse struct {
	Queued   int                `json:"queued"`
	Messages []QueuedMessageDTO `json:"messages"`
}

// PreviewRequest represents the request to render a template without
// sending it
type PreviewRequest struct {
	TemplateName string           `json:"template_name" validate:"required,max=140"`
	BodyParams   string           `json:"body_params,omitempty"`
	Document     *DocumentPayload `json:"document,omitempty"`
}

// PreviewResponse carries the rendered body
type PreviewResponse struct {
	TemplateName string   `json:"template_name"`
	Rendered     string   `json:"rendered"`
	Params       []string `json:"params"`
}

// MessageDTO is the API view of one delivery ledger row
type MessageDTO struct {
	UUID              string     `json:"uuid"`
	Direction         string     `json:"direction"`
	Kind              string     `json:"kind"`
	Status            string     `json:"status"`
	ToNumber          string     `json:"to_number"`
	Content           string     `json:"content,omitempty"`
	MediaURL          *string    `json:"media_url,omitempty"`
	RefDoctype        *string    `json:"ref_doctype,omitempty"`
	RefDocname        *string    `json:"ref_docname,omitempty"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	ErrorDetail       *string    `json:"error_detail,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// WebhookMessageRequest is the inbound payload posted by the gateway
type WebhookMessageRequest struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}
