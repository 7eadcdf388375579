// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/peykaro/whatsapp-dispatch/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// WhatsAppMessageRepository defines operations on the delivery ledger
type WhatsAppMessageRepository interface {
	Repository[models.WhatsAppMessage, models.WhatsAppMessageFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.WhatsAppMessage, error)
	// RecentDuplicateExists reports whether an outgoing row with the same
	// reference document, recipient and template reached queued, started
	// or success since the given instant. The excluded id is the caller's
	// own placeholder.
	RecentDuplicateExists(ctx context.Context, refDoctype, refDocname, toNumber string, templateID *uint, since time.Time, excludeID *uint) (bool, error)
	ListByBulkMessage(ctx context.Context, bulkMessageID uint) ([]*models.WhatsAppMessage, error)
	ListFailedByBulkMessage(ctx context.Context, bulkMessageID uint) ([]*models.WhatsAppMessage, error)
}

// WhatsAppAccountRepository defines operations for sender accounts
type WhatsAppAccountRepository interface {
	Repository[models.WhatsAppAccount, models.WhatsAppAccountFilter]
	ByName(ctx context.Context, name string) (*models.WhatsAppAccount, error)
	// SaveNormalized persists the account and clears each default flag it
	// carries from every other account, in one transaction.
	SaveNormalized(ctx context.Context, account *models.WhatsAppAccount) error
	DefaultOutgoing(ctx context.Context) (*models.WhatsAppAccount, error)
	DefaultIncoming(ctx context.Context) (*models.WhatsAppAccount, error)
	AnyDefault(ctx context.Context) (*models.WhatsAppAccount, error)
	AnyEnabled(ctx context.Context) (*models.WhatsAppAccount, error)
}

// WhatsAppTemplateRepository defines operations for message templates
type WhatsAppTemplateRepository interface {
	Repository[models.WhatsAppTemplate, models.WhatsAppTemplateFilter]
	ByName(ctx context.Context, name string) (*models.WhatsAppTemplate, error)
}

// NotificationRuleRepository defines operations for notification rules
type NotificationRuleRepository interface {
	Repository[models.NotificationRule, models.NotificationRuleFilter]
	ByName(ctx context.Context, name string) (*models.NotificationRule, error)
	ListForEvent(ctx context.Context, doctype string, event models.NotificationEvent) ([]*models.NotificationRule, error)
	ListDateBased(ctx context.Context) ([]*models.NotificationRule, error)
	ListCron(ctx context.Context) ([]*models.NotificationRule, error)
	Delete(ctx context.Context, id uint) error
}

// NotificationLogRepository defines operations for notification logs
type NotificationLogRepository interface {
	Repository[models.NotificationLog, models.NotificationLogFilter]
	ListByRule(ctx context.Context, ruleID uint, limit, offset int) ([]*models.NotificationLog, error)
}

// RecipientListRepository defines operations for recipient lists and entries
type RecipientListRepository interface {
	Repository[models.RecipientList, models.RecipientListFilter]
	ByName(ctx context.Context, name string) (*models.RecipientList, error)
	ListEntries(ctx context.Context, listID uint) ([]*models.RecipientListEntry, error)
	UpsertEntries(ctx context.Context, listID uint, entries []*models.RecipientListEntry) error
	RemoveEntry(ctx context.Context, listID uint, number string) error
}

// BulkMessageRepository defines operations for bulk sends
type BulkMessageRepository interface {
	Repository[models.BulkMessage, models.BulkMessageFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.BulkMessage, error)
	IncrementSentCount(ctx context.Context, id uint) error
	IncrementFailedCount(ctx context.Context, id uint) error
}

// BusinessDocumentRepository defines operations for mirrored business documents
type BusinessDocumentRepository interface {
	Repository[models.BusinessDocument, models.BusinessDocumentFilter]
	ByDoctypeName(ctx context.Context, doctype, name string) (*models.BusinessDocument, error)
	ListNamesDueOn(ctx context.Context, doctype, dateField, day string) ([]string, error)
	SetField(ctx context.Context, doctype, name, field, value string) error
}

// ContactRepository defines operations for contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ByName(ctx context.Context, name string) (*models.Contact, error)
	// ListLinkedTo returns contacts linked to the given document, with
	// phones preloaded.
	ListLinkedTo(ctx context.Context, linkDoctype, linkName string) ([]*models.Contact, error)
}

// EmployeeRepository defines operations for employees
type EmployeeRepository interface {
	Repository[models.Employee, models.EmployeeFilter]
	ByName(ctx context.Context, name string) (*models.Employee, error)
	ByEmployeeName(ctx context.Context, employeeName string) (*models.Employee, error)
}
