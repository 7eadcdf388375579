package models

import (
	"time"

	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// NotificationOutcome classifies what happened when a rule fired
type NotificationOutcome string

const (
	NotificationOutcomeSent        NotificationOutcome = "sent"
	NotificationOutcomeFailed      NotificationOutcome = "failed"
	NotificationOutcomeSkipped     NotificationOutcome = "skipped"
	NotificationOutcomeNoRecipient NotificationOutcome = "no_recipient"
)

// NotificationLog records one rule firing against one document and
// recipient, successful or not.
type NotificationLog struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	RuleID     uint                `gorm:"not null;index:idx_notification_logs_rule_id" json:"rule_id"`
	RefDoctype string              `gorm:"size:140;not null" json:"ref_doctype"`
	RefDocname string              `gorm:"size:140;not null;index:idx_notification_logs_ref_docname" json:"ref_docname"`
	ToNumber   string              `gorm:"size:20" json:"to_number"`
	MessageID  *uint               `json:"message_id,omitempty"`
	Outcome    NotificationOutcome `gorm:"size:20;not null" json:"outcome"`
	Detail     *string             `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt  time.Time           `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_notification_logs_created_at" json:"created_at"`

	// Relations
	Rule    *NotificationRule `gorm:"foreignKey:RuleID;references:ID" json:"rule,omitempty"`
	Message *WhatsAppMessage  `gorm:"foreignKey:MessageID;references:ID" json:"message,omitempty"`
}

// TableName returns the table name for the model
func (NotificationLog) TableName() string {
	return "notification_logs"
}

// BeforeCreate is called before creating a new record
func (l *NotificationLog) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// NotificationLogFilter represents filter criteria for notification logs
type NotificationLogFilter struct {
	ID            *uint                `json:"id,omitempty"`
	RuleID        *uint                `json:"rule_id,omitempty"`
	RefDoctype    *string              `json:"ref_doctype,omitempty"`
	RefDocname    *string              `json:"ref_docname,omitempty"`
	ToNumber      *string              `json:"to_number,omitempty"`
	Outcome       *NotificationOutcome `json:"outcome,omitempty"`
	CreatedAfter  *time.Time           `json:"created_after,omitempty"`
	CreatedBefore *time.Time           `json:"created_before,omitempty"`
}
