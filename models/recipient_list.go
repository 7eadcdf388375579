package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// AuxData is free-form per-recipient data used to fill template
// placeholders, stored as jsonb.
type AuxData map[string]string

// Value implements the driver.Valuer interface for AuxData
func (d AuxData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for AuxData
func (d *AuxData) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AuxData", value)
	}

	return json.Unmarshal(bytes, d)
}

// RecipientList is a named, deduplicated set of normalized numbers.
// ExcludedNumbers tracks manually removed entries so incremental
// imports do not resurrect them.
type RecipientList struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:140;not null;uniqueIndex:uk_recipient_lists_name" json:"name"`

	// When set, Refresh pulls numbers from contacts linked to this
	// document type
	SourceDoctype *string `gorm:"size:140" json:"source_doctype,omitempty"`

	ExcludedNumbers pq.StringArray `gorm:"type:text[]" json:"excluded_numbers,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Entries []RecipientListEntry `gorm:"foreignKey:ListID" json:"entries,omitempty"`
}

// TableName returns the table name for the model
func (RecipientList) TableName() string {
	return "recipient_lists"
}

// BeforeCreate is called before creating a new record
func (l *RecipientList) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (l *RecipientList) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	l.UpdatedAt = &now
	return nil
}

// IsExcluded reports whether the number was manually removed from the list
func (l *RecipientList) IsExcluded(number string) bool {
	for _, n := range l.ExcludedNumbers {
		if n == number {
			return true
		}
	}
	return false
}

// RecipientListEntry is one normalized number with optional display
// name and auxiliary template data.
type RecipientListEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ListID      uint      `gorm:"not null;index:idx_recipient_list_entries_list_id;uniqueIndex:uk_recipient_list_entries_list_number,priority:1" json:"list_id"`
	Number      string    `gorm:"size:20;not null;uniqueIndex:uk_recipient_list_entries_list_number,priority:2" json:"number"`
	DisplayName *string   `gorm:"size:140" json:"display_name,omitempty"`
	Data        AuxData   `gorm:"type:jsonb" json:"data,omitempty"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (RecipientListEntry) TableName() string {
	return "recipient_list_entries"
}

// BeforeCreate is called before creating a new record
func (e *RecipientListEntry) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	return nil
}

// RecipientListFilter represents filter criteria for recipient lists
type RecipientListFilter struct {
	ID            *uint   `json:"id,omitempty"`
	Name          *string `json:"name,omitempty"`
	SourceDoctype *string `json:"source_doctype,omitempty"`
}

// RecipientListEntryFilter represents filter criteria for list entries
type RecipientListEntryFilter struct {
	ID     *uint   `json:"id,omitempty"`
	ListID *uint   `json:"list_id,omitempty"`
	Number *string `json:"number,omitempty"`
}
