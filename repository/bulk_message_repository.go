package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// BulkMessageRepositoryImpl implements BulkMessageRepository
type BulkMessageRepositoryImpl struct {
	*BaseRepository[models.BulkMessage, models.BulkMessageFilter]
}

func NewBulkMessageRepository(db *gorm.DB) BulkMessageRepository {
	return &BulkMessageRepositoryImpl{BaseRepository: NewBaseRepository[models.BulkMessage, models.BulkMessageFilter](db)}
}

func (r *BulkMessageRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.BulkMessage, error) {
	db := r.getDB(ctx)
	var row models.BulkMessage
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *BulkMessageRepositoryImpl) incrementColumn(ctx context.Context, id uint, column string) error {
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

	err = db.Model(&models.BulkMessage{}).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + 1")).Error
	return err
}

func (r *BulkMessageRepositoryImpl) IncrementSentCount(ctx context.Context, id uint) error {
	return r.incrementColumn(ctx, id, "sent_count")
}

func (r *BulkMessageRepositoryImpl) IncrementFailedCount(ctx context.Context, id uint) error {
	return r.incrementColumn(ctx, id, "failed_count")
}

func (r *BulkMessageRepositoryImpl) applyFilter(db *gorm.DB, f models.BulkMessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.RecipientListID != nil {
		db = db.Where("recipient_list_id = ?", *f.RecipientListID)
	}
	if f.TemplateID != nil {
		db = db.Where("template_id = ?", *f.TemplateID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *BulkMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.BulkMessageFilter, orderBy string, limit, offset int) ([]*models.BulkMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BulkMessage{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.BulkMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BulkMessageRepositoryImpl) Count(ctx context.Context, filter models.BulkMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BulkMessage{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BulkMessageRepositoryImpl) Exists(ctx context.Context, filter models.BulkMessageFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
