package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// WhatsAppMessageRepositoryImpl implements WhatsAppMessageRepository
type WhatsAppMessageRepositoryImpl struct {
	*BaseRepository[models.WhatsAppMessage, models.WhatsAppMessageFilter]
}

func NewWhatsAppMessageRepository(db *gorm.DB) WhatsAppMessageRepository {
	return &WhatsAppMessageRepositoryImpl{BaseRepository: NewBaseRepository[models.WhatsAppMessage, models.WhatsAppMessageFilter](db)}
}

func (r *WhatsAppMessageRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.WhatsAppMessage, error) {
	db := r.getDB(ctx)
	var row models.WhatsAppMessage
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *WhatsAppMessageRepositoryImpl) RecentDuplicateExists(ctx context.Context, refDoctype, refDocname, toNumber string, templateID *uint, since time.Time, excludeID *uint) (bool, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.WhatsAppMessage{}).
		Where("direction = ?", models.MessageDirectionOutgoing).
		Where("ref_doctype = ? AND ref_docname = ?", refDoctype, refDocname).
		Where("to_number = ?", toNumber).
		Where("status IN ?", []models.MessageStatus{
			models.MessageStatusQueued,
			models.MessageStatusStarted,
			models.MessageStatusSuccess,
		}).
		Where("created_at >= ?", since)
	if templateID != nil {
		query = query.Where("template_id = ?", *templateID)
	} else {
		query = query.Where("template_id IS NULL")
	}
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *WhatsAppMessageRepositoryImpl) ListByBulkMessage(ctx context.Context, bulkMessageID uint) ([]*models.WhatsAppMessage, error) {
	filter := models.WhatsAppMessageFilter{BulkMessageID: &bulkMessageID}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *WhatsAppMessageRepositoryImpl) ListFailedByBulkMessage(ctx context.Context, bulkMessageID uint) ([]*models.WhatsAppMessage, error) {
	status := models.MessageStatusFailed
	filter := models.WhatsAppMessageFilter{BulkMessageID: &bulkMessageID, Status: &status}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *WhatsAppMessageRepositoryImpl) applyFilter(db *gorm.DB, f models.WhatsAppMessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Direction != nil {
		db = db.Where("direction = ?", *f.Direction)
	}
	if f.Kind != nil {
		db = db.Where("kind = ?", *f.Kind)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.ToNumber != nil {
		db = db.Where("to_number = ?", *f.ToNumber)
	}
	if f.TemplateID != nil {
		db = db.Where("template_id = ?", *f.TemplateID)
	}
	if f.RuleID != nil {
		db = db.Where("rule_id = ?", *f.RuleID)
	}
	if f.BulkMessageID != nil {
		db = db.Where("bulk_message_id = ?", *f.BulkMessageID)
	}
	if f.RefDoctype != nil {
		db = db.Where("ref_doctype = ?", *f.RefDoctype)
	}
	if f.RefDocname != nil {
		db = db.Where("ref_docname = ?", *f.RefDocname)
	}
	if f.ExcludeID != nil {
		db = db.Where("id <> ?", *f.ExcludeID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *WhatsAppMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.WhatsAppMessageFilter, orderBy string, limit, offset int) ([]*models.WhatsAppMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WhatsAppMessage{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.WhatsAppMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WhatsAppMessageRepositoryImpl) Count(ctx context.Context, filter models.WhatsAppMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WhatsAppMessage{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *WhatsAppMessageRepositoryImpl) Exists(ctx context.Context, filter models.WhatsAppMessageFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
