package repository

import (
	"context"
	"errors"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// NotificationRuleRepositoryImpl implements NotificationRuleRepository
type NotificationRuleRepositoryImpl struct {
	*BaseRepository[models.NotificationRule, models.NotificationRuleFilter]
}

func NewNotificationRuleRepository(db *gorm.DB) NotificationRuleRepository {
	return &NotificationRuleRepositoryImpl{BaseRepository: NewBaseRepository[models.NotificationRule, models.NotificationRuleFilter](db)}
}

func (r *NotificationRuleRepositoryImpl) ByName(ctx context.Context, name string) (*models.NotificationRule, error) {
	db := r.getDB(ctx)
	var row models.NotificationRule
	if err := db.Where("name = ?", name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *NotificationRuleRepositoryImpl) ListForEvent(ctx context.Context, doctype string, event models.NotificationEvent) ([]*models.NotificationRule, error) {
	enabled := true
	filter := models.NotificationRuleFilter{DocType: &doctype, Event: &event, Enabled: &enabled}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *NotificationRuleRepositoryImpl) ListDateBased(ctx context.Context) ([]*models.NotificationRule, error) {
	db := r.getDB(ctx)
	var rows []*models.NotificationRule
	err := db.Model(&models.NotificationRule{}).
		Where("enabled = ?", true).
		Where("event IN ?", []models.NotificationEvent{
			models.NotificationEventDaysBefore,
			models.NotificationEventDaysAfter,
		}).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *NotificationRuleRepositoryImpl) ListCron(ctx context.Context) ([]*models.NotificationRule, error) {
	event := models.NotificationEventCron
	enabled := true
	filter := models.NotificationRuleFilter{Event: &event, Enabled: &enabled}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *NotificationRuleRepositoryImpl) applyFilter(db *gorm.DB, f models.NotificationRuleFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.DocType != nil {
		db = db.Where("doc_type = ?", *f.DocType)
	}
	if f.Event != nil {
		db = db.Where("event = ?", *f.Event)
	}
	if f.Enabled != nil {
		db = db.Where("enabled = ?", *f.Enabled)
	}
	return db
}

func (r *NotificationRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationRuleFilter, orderBy string, limit, offset int) ([]*models.NotificationRule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.NotificationRule{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.NotificationRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *NotificationRuleRepositoryImpl) Count(ctx context.Context, filter models.NotificationRuleFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.NotificationRule{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *NotificationRuleRepositoryImpl) Exists(ctx context.Context, filter models.NotificationRuleFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
