package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// NotificationEvent is the trigger that fires a rule
type NotificationEvent string

const (
	NotificationEventNew         NotificationEvent = "new"
	NotificationEventUpdate      NotificationEvent = "update"
	NotificationEventSubmit      NotificationEvent = "submit"
	NotificationEventCancel      NotificationEvent = "cancel"
	NotificationEventValueChange NotificationEvent = "value_change"
	NotificationEventDaysBefore  NotificationEvent = "days_before"
	NotificationEventDaysAfter   NotificationEvent = "days_after"
	NotificationEventCron        NotificationEvent = "cron"
)

// Valid checks if the event is valid
func (e NotificationEvent) Valid() bool {
	switch e {
	case NotificationEventNew, NotificationEventUpdate, NotificationEventSubmit,
		NotificationEventCancel, NotificationEventValueChange,
		NotificationEventDaysBefore, NotificationEventDaysAfter,
		NotificationEventCron:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for NotificationEvent
func (e *NotificationEvent) Scan(value any) error {
	if value == nil {
		*e = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*e = NotificationEvent(v)
	case []byte:
		*e = NotificationEvent(string(v))
	default:
		return fmt.Errorf("cannot scan %T into NotificationEvent", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for NotificationEvent
func (e NotificationEvent) Value() (driver.Value, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid NotificationEvent: %s", e)
	}
	return string(e), nil
}

// IsDateBased reports whether the rule fires relative to a date field
func (e NotificationEvent) IsDateBased() bool {
	return e == NotificationEventDaysBefore || e == NotificationEventDaysAfter
}

// NotificationRule binds a document type and event to a template and a
// recipient hint. Date-based and cron rules are collected by the
// scheduler instead of document hooks.
type NotificationRule struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:140;not null;uniqueIndex:uk_notification_rules_name" json:"name"`
	Enabled bool   `gorm:"not null;default:true;index:idx_notification_rules_enabled" json:"enabled"`

	DocType string            `gorm:"size:140;not null;index:idx_notification_rules_doctype" json:"doctype"`
	Event   NotificationEvent `gorm:"type:notification_event;not null" json:"event"`

	// For value_change rules
	ValueField *string `gorm:"size:140" json:"value_field,omitempty"`

	// For date-based rules
	DateField     *string `gorm:"size:140" json:"date_field,omitempty"`
	DaysInAdvance int     `gorm:"default:0" json:"days_in_advance"`

	// For cron rules, a schedule expression evaluated by the scheduler
	CronExpr *string `gorm:"size:64" json:"cron_expr,omitempty"`

	// Condition expression; rule fires only when it evaluates truthy
	// against the document snapshot
	Condition *string `gorm:"type:text" json:"condition,omitempty"`

	TemplateID uint `gorm:"not null" json:"template_id"`

	// Document field holding the recipient number(s)
	RecipientField *string `gorm:"size:140" json:"recipient_field,omitempty"`

	// Fixed numbers notified in addition to resolved recipients
	FixedNumbers pq.StringArray `gorm:"type:text[]" json:"fixed_numbers,omitempty"`

	// Document fields feeding the template placeholders, positional
	ParamFields pq.StringArray `gorm:"type:text[]" json:"param_fields,omitempty"`

	AttachDocument bool `gorm:"not null;default:false" json:"attach_document"`
	DelaySeconds   int  `gorm:"default:0" json:"delay_seconds"`

	// Optional document mutation applied after a successful send
	SetPropertyField *string `gorm:"size:140" json:"set_property_field,omitempty"`
	SetPropertyValue *string `gorm:"size:255" json:"set_property_value,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Template *WhatsAppTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
}

// TableName returns the table name for the model
func (NotificationRule) TableName() string {
	return "notification_rules"
}

// BeforeCreate is called before creating a new record
func (r *NotificationRule) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (r *NotificationRule) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	r.UpdatedAt = &now
	return nil
}

// NotificationRuleFilter represents filter criteria for rules
type NotificationRuleFilter struct {
	ID      *uint              `json:"id,omitempty"`
	Name    *string            `json:"name,omitempty"`
	DocType *string            `json:"doctype,omitempty"`
	Event   *NotificationEvent `json:"event,omitempty"`
	Enabled *bool              `json:"enabled,omitempty"`
}
