package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// WhatsAppAccount holds the Evolution API coordinates of one WhatsApp
// sender. Empty APIBase or APIKey fall back to the global provider
// settings at resolution time.
type WhatsAppAccount struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_whatsapp_accounts_uuid" json:"uuid"`
	Name     string    `gorm:"size:140;not null;uniqueIndex:uk_whatsapp_accounts_name" json:"name"`
	APIBase  string    `gorm:"size:255" json:"api_base"`
	APIKey   string    `gorm:"size:255" json:"-"`
	Instance string    `gorm:"size:140" json:"instance"`

	// Optional full-URL overrides for the send endpoints. A literal
	// "{instance}" token is substituted at request time.
	TextEndpointOverride  *string `gorm:"size:255" json:"text_endpoint_override,omitempty"`
	MediaEndpointOverride *string `gorm:"size:255" json:"media_endpoint_override,omitempty"`

	Enabled         bool `gorm:"not null;default:true;index:idx_whatsapp_accounts_enabled" json:"enabled"`
	IsDefault       bool `gorm:"not null;default:false" json:"is_default"`
	DefaultOutgoing bool `gorm:"not null;default:false;index:idx_whatsapp_accounts_default_outgoing" json:"default_outgoing"`
	DefaultIncoming bool `gorm:"not null;default:false" json:"default_incoming"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (WhatsAppAccount) TableName() string {
	return "whatsapp_accounts"
}

// BeforeCreate is called before creating a new record
func (a *WhatsAppAccount) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (a *WhatsAppAccount) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	a.UpdatedAt = &now
	return nil
}

// WhatsAppAccountFilter represents filter criteria for accounts
type WhatsAppAccountFilter struct {
	ID              *uint      `json:"id,omitempty"`
	UUID            *uuid.UUID `json:"uuid,omitempty"`
	Name            *string    `json:"name,omitempty"`
	Instance        *string    `json:"instance,omitempty"`
	Enabled         *bool      `json:"enabled,omitempty"`
	IsDefault       *bool      `json:"is_default,omitempty"`
	DefaultOutgoing *bool      `json:"default_outgoing,omitempty"`
	DefaultIncoming *bool      `json:"default_incoming,omitempty"`
}
