package repository

import (
	"context"
	"errors"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// WhatsAppTemplateRepositoryImpl implements WhatsAppTemplateRepository
type WhatsAppTemplateRepositoryImpl struct {
	*BaseRepository[models.WhatsAppTemplate, models.WhatsAppTemplateFilter]
}

func NewWhatsAppTemplateRepository(db *gorm.DB) WhatsAppTemplateRepository {
	return &WhatsAppTemplateRepositoryImpl{BaseRepository: NewBaseRepository[models.WhatsAppTemplate, models.WhatsAppTemplateFilter](db)}
}

func (r *WhatsAppTemplateRepositoryImpl) ByName(ctx context.Context, name string) (*models.WhatsAppTemplate, error) {
	db := r.getDB(ctx)
	var row models.WhatsAppTemplate
	if err := db.Where("name = ?", name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *WhatsAppTemplateRepositoryImpl) applyFilter(db *gorm.DB, f models.WhatsAppTemplateFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.Enabled != nil {
		db = db.Where("enabled = ?", *f.Enabled)
	}
	return db
}

func (r *WhatsAppTemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.WhatsAppTemplateFilter, orderBy string, limit, offset int) ([]*models.WhatsAppTemplate, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WhatsAppTemplate{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.WhatsAppTemplate
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WhatsAppTemplateRepositoryImpl) Count(ctx context.Context, filter models.WhatsAppTemplateFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WhatsAppTemplate{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *WhatsAppTemplateRepositoryImpl) Exists(ctx context.Context, filter models.WhatsAppTemplateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
