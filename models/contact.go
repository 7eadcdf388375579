package models

import (
	"time"

	"github.com/peykaro/whatsapp-dispatch/utils"
	"gorm.io/gorm"
)

// Contact mirrors the CRM contact records that recipient resolution
// consults. Phones carry a WhatsApp flag; Links tie the contact to
// business documents (customer, supplier, and so on).
type Contact struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:140;not null;uniqueIndex:uk_contacts_name" json:"name"`
	FullName  string     `gorm:"size:200" json:"full_name"`
	MobileNo  *string    `gorm:"size:20" json:"mobile_no,omitempty"`
	PhoneNo   *string    `gorm:"size:20" json:"phone_no,omitempty"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Phones []ContactPhone `gorm:"foreignKey:ContactID" json:"phones,omitempty"`
	Links  []ContactLink  `gorm:"foreignKey:ContactID" json:"links,omitempty"`
}

// TableName returns the table name for the model
func (Contact) TableName() string {
	return "contacts"
}

// BeforeCreate is called before creating a new record
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Contact) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// BestNumber picks the single most reachable number: a WhatsApp flagged
// phone wins, then the primary mobile, then MobileNo, then PhoneNo.
func (c *Contact) BestNumber() string {
	for _, p := range c.Phones {
		if p.IsWhatsApp {
			return p.Number
		}
	}
	for _, p := range c.Phones {
		if p.IsPrimaryMobile {
			return p.Number
		}
	}
	if c.MobileNo != nil && *c.MobileNo != "" {
		return *c.MobileNo
	}
	if c.PhoneNo != nil && *c.PhoneNo != "" {
		return *c.PhoneNo
	}
	return ""
}

// ContactPhone is one number of a contact. IsWhatsApp marks numbers
// verified to be reachable on WhatsApp.
type ContactPhone struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	ContactID       uint   `gorm:"not null;index:idx_contact_phones_contact_id" json:"contact_id"`
	Number          string `gorm:"size:20;not null" json:"number"`
	IsWhatsApp      bool   `gorm:"not null;default:false" json:"is_whatsapp"`
	IsPrimaryMobile bool   `gorm:"not null;default:false" json:"is_primary_mobile"`
}

// TableName returns the table name for the model
func (ContactPhone) TableName() string {
	return "contact_phones"
}

// ContactLink ties a contact to a business document
type ContactLink struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ContactID   uint   `gorm:"not null;index:idx_contact_links_contact_id" json:"contact_id"`
	LinkDoctype string `gorm:"size:140;not null;index:idx_contact_links_link,priority:1" json:"link_doctype"`
	LinkName    string `gorm:"size:140;not null;index:idx_contact_links_link,priority:2" json:"link_name"`
}

// TableName returns the table name for the model
func (ContactLink) TableName() string {
	return "contact_links"
}

// ContactFilter represents filter criteria for contacts
type ContactFilter struct {
	ID          *uint   `json:"id,omitempty"`
	Name        *string `json:"name,omitempty"`
	LinkDoctype *string `json:"link_doctype,omitempty"`
	LinkName    *string `json:"link_name,omitempty"`
}

// Employee mirrors the HR employee records consulted when a recipient
// hint points at an employee field.
type Employee struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"size:140;not null;uniqueIndex:uk_employees_name" json:"name"`
	EmployeeName string  `gorm:"size:200" json:"employee_name"`
	CellNumber   *string `gorm:"size:20" json:"cell_number,omitempty"`
	UserID       *string `gorm:"size:140" json:"user_id,omitempty"`
}

// TableName returns the table name for the model
func (Employee) TableName() string {
	return "employees"
}

// EmployeeFilter represents filter criteria for employees
type EmployeeFilter struct {
	ID           *uint   `json:"id,omitempty"`
	Name         *string `json:"name,omitempty"`
	EmployeeName *string `json:"employee_name,omitempty"`
}
