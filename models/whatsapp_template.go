package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// WhatsAppTemplate is a reusable message body with positional {{1}},
// {{2}}, ... placeholders. FieldNames declares, in placeholder order,
// which document fields fill those slots when no explicit parameters
// are given.
type WhatsAppTemplate struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:140;not null;uniqueIndex:uk_whatsapp_templates_name" json:"name"`
	Body       string         `gorm:"type:text;not null" json:"body"`
	Language   string         `gorm:"size:10;default:'en'" json:"language"`
	FieldNames pq.StringArray `gorm:"type:text[]" json:"field_names,omitempty"`
	MediaURL   *string        `gorm:"size:512" json:"media_url,omitempty"`
	MediaType  *string        `gorm:"size:64" json:"media_type,omitempty"`
	Enabled    bool           `gorm:"not null;default:true" json:"enabled"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (WhatsAppTemplate) TableName() string {
	return "whatsapp_templates"
}

// BeforeCreate is called before creating a new record
func (t *WhatsAppTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (t *WhatsAppTemplate) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	t.UpdatedAt = &now
	return nil
}

// HasMedia reports whether the template carries an attachment.
func (t *WhatsAppTemplate) HasMedia() bool {
	return t.MediaURL != nil && *t.MediaURL != ""
}

// WhatsAppTemplateFilter represents filter criteria for templates
type WhatsAppTemplateFilter struct {
	ID      *uint   `json:"id,omitempty"`
	Name    *string `json:"name,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}
