package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// MessageDirection separates outbound dispatch rows from webhook-ingested rows
type MessageDirection string

const (
	MessageDirectionOutgoing MessageDirection = "outgoing"
	MessageDirectionIncoming MessageDirection = "incoming"
)

// String returns the string representation of the direction
func (d MessageDirection) String() string {
	return string(d)
}

// MessageKind is the wire shape of the payload
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindMedia MessageKind = "media"
)

// String returns the string representation of the kind
func (k MessageKind) String() string {
	return string(k)
}

// MessageStatus represents the lifecycle state of a message row
type MessageStatus string

const (
	MessageStatusQueued  MessageStatus = "queued"
	MessageStatusStarted MessageStatus = "started"
	MessageStatusSuccess MessageStatus = "success"
	MessageStatusFailed  MessageStatus = "failed"
	MessageStatusSkipped MessageStatus = "skipped"
)

// String returns the string representation of the status
func (s MessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusQueued, MessageStatusStarted, MessageStatusSuccess,
		MessageStatusFailed, MessageStatusSkipped:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageStatus
func (s *MessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MessageStatus(v)
	case []byte:
		*s = MessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageStatus
func (s MessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MessageStatus: %s", s)
	}
	return string(s), nil
}

// IsTerminal reports whether no further transition is allowed
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSuccess || s == MessageStatusFailed || s == MessageStatusSkipped
}

// WhatsAppMessage is one row of the delivery ledger. Outgoing rows are
// created as queued placeholders and mutated in place by their own send
// attempt; incoming rows are terminal on insert.
type WhatsAppMessage struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uk_whatsapp_messages_uuid" json:"uuid"`
	Direction MessageDirection `gorm:"size:10;not null;default:'outgoing';index:idx_whatsapp_messages_direction" json:"direction"`
	Kind      MessageKind      `gorm:"size:10;not null;default:'text'" json:"kind"`
	Status    MessageStatus    `gorm:"type:whatsapp_message_status;not null;default:'queued';index:idx_whatsapp_messages_status" json:"status"`

	ToNumber string `gorm:"size:20;not null;index:idx_whatsapp_messages_to_number" json:"to_number"`
	Content  string `gorm:"type:text" json:"content"`

	MediaURL  *string `gorm:"size:512" json:"media_url,omitempty"`
	MediaType *string `gorm:"size:64" json:"media_type,omitempty"`
	Caption   *string `gorm:"type:text" json:"caption,omitempty"`

	// Rendered template parameters, positional
	Params pq.StringArray `gorm:"type:text[]" json:"params,omitempty"`

	TemplateID    *uint `gorm:"index:idx_whatsapp_messages_template_id" json:"template_id,omitempty"`
	AccountID     *uint `json:"account_id,omitempty"`
	RuleID        *uint `json:"rule_id,omitempty"`
	BulkMessageID *uint `gorm:"index:idx_whatsapp_messages_bulk_message_id" json:"bulk_message_id,omitempty"`

	// Reference document that triggered the message
	RefDoctype *string `gorm:"size:140;index:idx_whatsapp_messages_ref,priority:1" json:"ref_doctype,omitempty"`
	RefDocname *string `gorm:"size:140;index:idx_whatsapp_messages_ref,priority:2" json:"ref_docname,omitempty"`

	ProviderMessageID *string `gorm:"size:140" json:"provider_message_id,omitempty"`
	ErrorDetail       *string `gorm:"type:text" json:"error_detail,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_whatsapp_messages_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Template    *WhatsAppTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
	Account     *WhatsAppAccount  `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	BulkMessage *BulkMessage      `gorm:"foreignKey:BulkMessageID;references:ID" json:"bulk_message,omitempty"`
}

// TableName returns the table name for the model
func (WhatsAppMessage) TableName() string {
	return "whatsapp_messages"
}

// BeforeCreate is called before creating a new record
func (m *WhatsAppMessage) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MessageStatusQueued
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (m *WhatsAppMessage) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	m.UpdatedAt = &now
	return nil
}

// CanRetry reports whether the row may be flipped back to queued
func (m *WhatsAppMessage) CanRetry() bool {
	return m.Direction == MessageDirectionOutgoing && m.Status == MessageStatusFailed
}

// WhatsAppMessageFilter represents filter criteria for messages
type WhatsAppMessageFilter struct {
	ID            *uint             `json:"id,omitempty"`
	UUID          *uuid.UUID        `json:"uuid,omitempty"`
	Direction     *MessageDirection `json:"direction,omitempty"`
	Kind          *MessageKind      `json:"kind,omitempty"`
	Status        *MessageStatus    `json:"status,omitempty"`
	Statuses      []MessageStatus   `json:"statuses,omitempty"`
	ToNumber      *string           `json:"to_number,omitempty"`
	TemplateID    *uint             `json:"template_id,omitempty"`
	RuleID        *uint             `json:"rule_id,omitempty"`
	BulkMessageID *uint             `json:"bulk_message_id,omitempty"`
	RefDoctype    *string           `json:"ref_doctype,omitempty"`
	RefDocname    *string           `json:"ref_docname,omitempty"`
	ExcludeID     *uint             `json:"exclude_id,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
}
