package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// BulkStatus represents the status of a bulk send
type BulkStatus string

const (
	BulkStatusDraft           BulkStatus = "draft"
	BulkStatusQueued          BulkStatus = "queued"
	BulkStatusInProgress      BulkStatus = "in_progress"
	BulkStatusCompleted       BulkStatus = "completed"
	BulkStatusPartiallyFailed BulkStatus = "partially_failed"
)

// String returns the string representation of the status
func (s BulkStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s BulkStatus) Valid() bool {
	switch s {
	case BulkStatusDraft, BulkStatusQueued, BulkStatusInProgress,
		BulkStatusCompleted, BulkStatusPartiallyFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for BulkStatus
func (s *BulkStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = BulkStatus(v)
	case []byte:
		*s = BulkStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BulkStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for BulkStatus
func (s BulkStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BulkStatus: %s", s)
	}
	return string(s), nil
}

// BulkMessage fans one template or custom body out to every number of a
// recipient list, sequentially, with a fixed inter-message delay.
type BulkMessage struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_bulk_messages_uuid" json:"uuid"`

	Status BulkStatus `gorm:"type:bulk_message_status;not null;default:'draft';index:idx_bulk_messages_status" json:"status"`

	RecipientListID uint  `gorm:"not null" json:"recipient_list_id"`
	TemplateID      *uint `json:"template_id,omitempty"`
	AccountID       *uint `json:"account_id,omitempty"`

	// Custom body used when no template is set
	Content *string `gorm:"type:text" json:"content,omitempty"`

	Kind      MessageKind `gorm:"size:10;not null;default:'text'" json:"kind"`
	MediaURL  *string     `gorm:"size:512" json:"media_url,omitempty"`
	MediaType *string     `gorm:"size:64" json:"media_type,omitempty"`

	// Seconds between consecutive recipients; 0 means the configured default
	DelaySeconds int `gorm:"default:0" json:"delay_seconds"`

	SentCount   int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount int `gorm:"not null;default:0" json:"failed_count"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	RecipientList *RecipientList    `gorm:"foreignKey:RecipientListID;references:ID" json:"recipient_list,omitempty"`
	Template      *WhatsAppTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
}

// TableName returns the table name for the model
func (BulkMessage) TableName() string {
	return "bulk_messages"
}

// BeforeCreate is called before creating a new record
func (b *BulkMessage) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BulkStatusDraft
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (b *BulkMessage) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	b.UpdatedAt = &now
	return nil
}

// CanStart reports whether the bulk send may be enqueued
func (b *BulkMessage) CanStart() bool {
	return b.Status == BulkStatusDraft || b.Status == BulkStatusPartiallyFailed
}

// BulkMessageFilter represents filter criteria for bulk messages
type BulkMessageFilter struct {
	ID              *uint       `json:"id,omitempty"`
	UUID            *uuid.UUID  `json:"uuid,omitempty"`
	Status          *BulkStatus `json:"status,omitempty"`
	RecipientListID *uint       `json:"recipient_list_id,omitempty"`
	TemplateID      *uint       `json:"template_id,omitempty"`
	CreatedAfter    *time.Time  `json:"created_after,omitempty"`
	CreatedBefore   *time.Time  `json:"created_before,omitempty"`
}
