package repository

import (
	"context"
	"errors"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// BusinessDocumentRepositoryImpl implements BusinessDocumentRepository
type BusinessDocumentRepositoryImpl struct {
	*BaseRepository[models.BusinessDocument, models.BusinessDocumentFilter]
}

func NewBusinessDocumentRepository(db *gorm.DB) BusinessDocumentRepository {
	return &BusinessDocumentRepositoryImpl{BaseRepository: NewBaseRepository[models.BusinessDocument, models.BusinessDocumentFilter](db)}
}

func (r *BusinessDocumentRepositoryImpl) ByDoctypeName(ctx context.Context, doctype, name string) (*models.BusinessDocument, error) {
	db := r.getDB(ctx)
	var row models.BusinessDocument
	if err := db.Where("doctype = ? AND name = ?", doctype, name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListNamesDueOn returns documents whose stored field value equals the
// given day, for date-based rule collection. Date fields are stored as
// YYYY-MM-DD strings.
func (r *BusinessDocumentRepositoryImpl) ListNamesDueOn(ctx context.Context, doctype, dateField, day string) ([]string, error) {
	db := r.getDB(ctx)
	var names []string
	err := db.Model(&models.BusinessDocument{}).
		Where("doctype = ? AND fields ->> ? = ?", doctype, dateField, day).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// SetField writes one field value inside the jsonb document
func (r *BusinessDocumentRepositoryImpl) SetField(ctx context.Context, doctype, name, field, value string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.BusinessDocument{}).
		Where("doctype = ? AND name = ?", doctype, name).
		Update("fields", gorm.Expr("jsonb_set(COALESCE(fields, '{}'::jsonb), ARRAY[?], to_jsonb(?::text))", field, value)).Error
	return err
}

func (r *BusinessDocumentRepositoryImpl) applyFilter(db *gorm.DB, f models.BusinessDocumentFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Doctype != nil {
		db = db.Where("doctype = ?", *f.Doctype)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	return db
}

func (r *BusinessDocumentRepositoryImpl) ByFilter(ctx context.Context, filter models.BusinessDocumentFilter, orderBy string, limit, offset int) ([]*models.BusinessDocument, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BusinessDocument{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.BusinessDocument
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BusinessDocumentRepositoryImpl) Count(ctx context.Context, filter models.BusinessDocumentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	query := r.applyFilter(db.Model(&models.BusinessDocument{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BusinessDocumentRepositoryImpl) Exists(ctx context.Context, filter models.BusinessDocumentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
