package models

import (
	"time"

	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// BusinessDocument is the local mirror of the business records that
// notifications reference. Field values are stored pre-rendered as
// strings, which is all the template renderer and condition evaluator
// consume.
type BusinessDocument struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	Doctype string  `gorm:"size:140;not null;uniqueIndex:uk_business_documents_type_name,priority:1" json:"doctype"`
	Name    string  `gorm:"size:140;not null;uniqueIndex:uk_business_documents_type_name,priority:2" json:"name"`
	Fields  AuxData `gorm:"type:jsonb" json:"fields"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (BusinessDocument) TableName() string {
	return "business_documents"
}

// BeforeCreate is called before creating a new record
func (d *BusinessDocument) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (d *BusinessDocument) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	d.UpdatedAt = &now
	return nil
}

// BusinessDocumentFilter represents filter criteria for documents
type BusinessDocumentFilter struct {
	ID      *uint   `json:"id,omitempty"`
	Doctype *string `json:"doctype,omitempty"`
	Name    *string `json:"name,omitempty"`
}
