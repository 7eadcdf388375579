package repository

import (
	"context"
	"errors"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// WhatsAppAccountRepositoryImpl implements WhatsAppAccountRepository
type WhatsAppAccountRepositoryImpl struct {
	*BaseRepository[models.WhatsAppAccount, models.WhatsAppAccountFilter]
}

func NewWhatsAppAccountRepository(db *gorm.DB) WhatsAppAccountRepository {
	return &WhatsAppAccountRepositoryImpl{BaseRepository: NewBaseRepository[models.WhatsAppAccount, models.WhatsAppAccountFilter](db)}
}

func (r *WhatsAppAccountRepositoryImpl) ByName(ctx context.Context, name string) (*models.WhatsAppAccount, error) {
	db := r.getDB(ctx)
	var row models.WhatsAppAccount
	if err := db.Where("name = ?", name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// SaveNormalized persists the account and strips each default flag it
// carries from every other account. At most one account per flag
// survives the write.
func (r *WhatsAppAccountRepositoryImpl) SaveNormalized(ctx context.Context, account *models.WhatsAppAccount) error {
	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)
		if account.ID == 0 {
			if err := db.Create(account).Error; err != nil {
				return err
			}
		} else {
			if err := db.Save(account).Error; err != nil {
				return err
			}
		}

		clear := func(column string) error {
			return db.Model(&models.WhatsAppAccount{}).
				Where("id <> ?", account.ID).
				Where(column+" = ?", true).
				Update(column, false).Error
		}
		if account.IsDefault {
			if err := clear("is_default"); err != nil {
				return err
			}
		}
		if account.DefaultOutgoing {
			if err := clear("default_outgoing"); err != nil {
				return err
			}
		}
		if account.DefaultIncoming {
			if err := clear("default_incoming"); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *WhatsAppAccountRepositoryImpl) firstWhere(ctx context.Context, query string, args ...any) (*models.WhatsAppAccount, error) {
	db := r.getDB(ctx)
	var row models.WhatsAppAccount
	if err := db.Where("enabled = ?", true).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *WhatsAppAccountRepositoryImpl) DefaultOutgoing(ctx context.Context) (*models.WhatsAppAccount, error) {
	return r.firstWhere(ctx, "default_outgoing = ?", true)
}

func (r *WhatsAppAccountRepositoryImpl) DefaultIncoming(ctx context.Context) (*models.WhatsAppAccount, error) {
	return r.firstWhere(ctx, "default_incoming = ?", true)
}

func (r *WhatsAppAccountRepositoryImpl) AnyDefault(ctx context.Context) (*models.WhatsAppAccount, error) {
	return r.firstWhere(ctx, "is_default = ?", true)
}

func (r *WhatsAppAccountRepositoryImpl) AnyEnabled(ctx context.Context) (*models.WhatsAppAccount, error) {
	return r.firstWhere(ctx, "1 = 1")
}

func (r *WhatsAppAccountRepositoryImpl) applyFilter(db *gorm.DB, f models.WhatsAppAccountFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.Instance != nil {
		db = db.Where("instance = ?", *f.Instance)
	}
	if f.Enabled != nil {
		db = db.Where("enabled = ?", *f.Enabled)
	}
	if f.IsDefault != nil {
		db = db.Where("is_default = ?", *f.IsDefault)
	}
	if f.DefaultOutgoing != nil {
		db = db.Where("default_outgoing = ?", *f.DefaultOutgoing)
	}
	if f.DefaultIncoming != nil {
		db = db.Where("default_incoming = ?", *f.DefaultIncoming)
	}
	return db
}

func (r *WhatsAppAccountRepositoryImpl) ByFilter(ctx context.Context, filter models.WhatsAppAccountFilter, orderBy string, limit, offset int) ([]*models.WhatsAppAccount, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WhatsAppAccount{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.WhatsAppAccount
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WhatsAppAccountRepositoryImpl) Count(ctx context.Context, filter models.WhatsAppAccountFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WhatsAppAccount{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *WhatsAppAccountRepositoryImpl) Exists(ctx context.Context, filter models.WhatsAppAccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
