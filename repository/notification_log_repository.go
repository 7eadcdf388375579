package repository

import (
	"context"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// NotificationLogRepositoryImpl implements NotificationLogRepository
type NotificationLogRepositoryImpl struct {
	*BaseRepository[models.NotificationLog, models.NotificationLogFilter]
}

func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &NotificationLogRepositoryImpl{BaseRepository: NewBaseRepository[models.NotificationLog, models.NotificationLogFilter](db)}
}

func (r *NotificationLogRepositoryImpl) ListByRule(ctx context.Context, ruleID uint, limit, offset int) ([]*models.NotificationLog, error) {
	filter := models.NotificationLogFilter{RuleID: &ruleID}
	return r.ByFilter(ctx, filter, "id DESC", limit, offset)
}

func (r *NotificationLogRepositoryImpl) applyFilter(db *gorm.DB, f models.NotificationLogFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.RuleID != nil {
		db = db.Where("rule_id = ?", *f.RuleID)
	}
	if f.RefDoctype != nil {
		db = db.Where("ref_doctype = ?", *f.RefDoctype)
	}
	if f.RefDocname != nil {
		db = db.Where("ref_docname = ?", *f.RefDocname)
	}
	if f.ToNumber != nil {
		db = db.Where("to_number = ?", *f.ToNumber)
	}
	if f.Outcome != nil {
		db = db.Where("outcome = ?", *f.Outcome)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *NotificationLogRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationLogFilter, orderBy string, limit, offset int) ([]*models.NotificationLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.NotificationLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.NotificationLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *NotificationLogRepositoryImpl) Count(ctx context.Context, filter models.NotificationLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.NotificationLog{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *NotificationLogRepositoryImpl) Exists(ctx context.Context, filter models.NotificationLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
