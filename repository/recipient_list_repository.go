package repository

import (
	"context"
	"errors"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipientListRepositoryImpl implements RecipientListRepository
type RecipientListRepositoryImpl struct {
	*BaseRepository[models.RecipientList, models.RecipientListFilter]
}

func NewRecipientListRepository(db *gorm.DB) RecipientListRepository {
	return &RecipientListRepositoryImpl{BaseRepository: NewBaseRepository[models.RecipientList, models.RecipientListFilter](db)}
}

func (r *RecipientListRepositoryImpl) ByName(ctx context.Context, name string) (*models.RecipientList, error) {
	db := r.getDB(ctx)
	var row models.RecipientList
	if err := db.Where("name = ?", name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *RecipientListRepositoryImpl) ListEntries(ctx context.Context, listID uint) ([]*models.RecipientListEntry, error) {
	db := r.getDB(ctx)
	var rows []*models.RecipientListEntry
	err := db.Model(&models.RecipientListEntry{}).
		Where("list_id = ?", listID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertEntries inserts entries, updating display name and data on
// number conflicts instead of failing.
func (r *RecipientListRepositoryImpl) UpsertEntries(ctx context.Context, listID uint, entries []*models.RecipientListEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		e.ListID = listID
	}
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

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "list_id"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "data"}),
	}).CreateInBatches(entries, 100).Error
	return err
}

func (r *RecipientListRepositoryImpl) RemoveEntry(ctx context.Context, listID uint, number string) error {
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

	err = db.Where("list_id = ? AND number = ?", listID, number).
		Delete(&models.RecipientListEntry{}).Error
	return err
}

func (r *RecipientListRepositoryImpl) applyFilter(db *gorm.DB, f models.RecipientListFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.SourceDoctype != nil {
		db = db.Where("source_doctype = ?", *f.SourceDoctype)
	}
	return db
}

func (r *RecipientListRepositoryImpl) ByFilter(ctx context.Context, filter models.RecipientListFilter, orderBy string, limit, offset int) ([]*models.RecipientList, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.RecipientList{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.RecipientList
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RecipientListRepositoryImpl) Count(ctx context.Context, filter models.RecipientListFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.RecipientList{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RecipientListRepositoryImpl) Exists(ctx context.Context, filter models.RecipientListFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
