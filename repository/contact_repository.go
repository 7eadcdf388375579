package repository

import (
	"context"
	"errors"

	"github.com/peykaro/whatsapp-dispatch/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db)}
}

func (r *ContactRepositoryImpl) ByName(ctx context.Context, name string) (*models.Contact, error) {
	db := r.getDB(ctx)
	var row models.Contact
	err := db.Preload("Phones").Preload("Links").
		Where("name = ?", name).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ContactRepositoryImpl) ListLinkedTo(ctx context.Context, linkDoctype, linkName string) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	var rows []*models.Contact
	err := db.Preload("Phones").
		Joins("JOIN contact_links ON contact_links.contact_id = contacts.id").
		Where("contact_links.link_doctype = ? AND contact_links.link_name = ?", linkDoctype, linkName).
		Order("contacts.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, f models.ContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("contacts.id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("contacts.name = ?", *f.Name)
	}
	if f.LinkDoctype != nil || f.LinkName != nil {
		db = db.Joins("JOIN contact_links ON contact_links.contact_id = contacts.id")
		if f.LinkDoctype != nil {
			db = db.Where("contact_links.link_doctype = ?", *f.LinkDoctype)
		}
		if f.LinkName != nil {
			db = db.Where("contact_links.link_name = ?", *f.LinkName)
		}
	}
	return db
}

func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ContactRepositoryImpl) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// EmployeeRepositoryImpl implements EmployeeRepository
type EmployeeRepositoryImpl struct {
	*BaseRepository[models.Employee, models.EmployeeFilter]
}

func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &EmployeeRepositoryImpl{BaseRepository: NewBaseRepository[models.Employee, models.EmployeeFilter](db)}
}

func (r *EmployeeRepositoryImpl) ByName(ctx context.Context, name string) (*models.Employee, error) {
	db := r.getDB(ctx)
	var row models.Employee
	if err := db.Where("name = ?", name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *EmployeeRepositoryImpl) ByEmployeeName(ctx context.Context, employeeName string) (*models.Employee, error) {
	db := r.getDB(ctx)
	var row models.Employee
	if err := db.Where("employee_name = ?", employeeName).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *EmployeeRepositoryImpl) applyFilter(db *gorm.DB, f models.EmployeeFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.EmployeeName != nil {
		db = db.Where("employee_name = ?", *f.EmployeeName)
	}
	return db
}

func (r *EmployeeRepositoryImpl) ByFilter(ctx context.Context, filter models.EmployeeFilter, orderBy string, limit, offset int) ([]*models.Employee, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Employee{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Employee
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmployeeRepositoryImpl) Count(ctx context.Context, filter models.EmployeeFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Employee{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EmployeeRepositoryImpl) Exists(ctx context.Context, filter models.EmployeeFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
