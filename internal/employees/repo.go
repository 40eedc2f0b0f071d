package employees

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/internal/repo"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
)

// Repository persists employees, their role rows and barista schedules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, ssn string) (*models.Employee, error)
	FindForUpdate(ctx context.Context, ssn string) (*models.Employee, error)
	FindByEmail(ctx context.Context, email string) (*models.Employee, error)
	List(ctx context.Context) ([]models.Employee, error)
	Create(ctx context.Context, emp *models.Employee) error
	Update(ctx context.Context, ssn string, updates map[string]any) error
	Delete(ctx context.Context, ssn string) error

	FindManager(ctx context.Context, ssn string) (*models.Manager, error)
	ListManagers(ctx context.Context) ([]models.Manager, error)
	CreateManager(ctx context.Context, manager *models.Manager) error
	SetOwnership(ctx context.Context, ssn string, share decimal.Decimal) error

	FindBarista(ctx context.Context, ssn string) (*models.Barista, error)
	ListBaristas(ctx context.Context) ([]models.Barista, error)
	CreateBarista(ctx context.Context, barista *models.Barista) error
	DeleteBarista(ctx context.Context, ssn string) error
	SetSalary(ctx context.Context, ssn string, salary decimal.Decimal) error

	CreateSchedule(ctx context.Context, schedule *models.WorkSchedule) error
	ListSchedules(ctx context.Context, ssn string) ([]models.WorkSchedule, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Find(ctx context.Context, ssn string) (*models.Employee, error) {
	return repo.TakeOrNil[models.Employee](r.DB(ctx), "ssn = ?", ssn)
}

func (r *repository) FindForUpdate(ctx context.Context, ssn string) (*models.Employee, error) {
	return repo.TakeOrNil[models.Employee](r.ForUpdate(ctx), "ssn = ?", ssn)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Employee, error) {
	return repo.TakeOrNil[models.Employee](r.DB(ctx), "LOWER(email) = LOWER(?)", email)
}

func (r *repository) List(ctx context.Context) ([]models.Employee, error) {
	var out []models.Employee
	if err := r.DB(ctx).Order("last_name ASC, first_name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, emp *models.Employee) error {
	return r.DB(ctx).Create(emp).Error
}

func (r *repository) Update(ctx context.Context, ssn string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.Employee{}).Where("ssn = ?", ssn).Updates(updates).Error
}

// Delete removes the employee along with role rows and schedules.
func (r *repository) Delete(ctx context.Context, ssn string) error {
	q := r.DB(ctx)
	if err := r.DeleteBarista(ctx, ssn); err != nil {
		return err
	}
	if err := q.Where("ssn = ?", ssn).Delete(&models.Manager{}).Error; err != nil {
		return err
	}
	return q.Where("ssn = ?", ssn).Delete(&models.Employee{}).Error
}

func (r *repository) FindManager(ctx context.Context, ssn string) (*models.Manager, error) {
	return repo.TakeOrNil[models.Manager](r.DB(ctx), "ssn = ?", ssn)
}

func (r *repository) ListManagers(ctx context.Context) ([]models.Manager, error) {
	var out []models.Manager
	if err := r.ForUpdate(ctx).Order("ssn ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) CreateManager(ctx context.Context, manager *models.Manager) error {
	return r.DB(ctx).Create(manager).Error
}

func (r *repository) SetOwnership(ctx context.Context, ssn string, share decimal.Decimal) error {
	return r.DB(ctx).Model(&models.Manager{}).Where("ssn = ?", ssn).Update("ownership_percentage", share).Error
}

func (r *repository) FindBarista(ctx context.Context, ssn string) (*models.Barista, error) {
	return repo.TakeOrNil[models.Barista](r.DB(ctx), "ssn = ?", ssn)
}

func (r *repository) ListBaristas(ctx context.Context) ([]models.Barista, error) {
	var out []models.Barista
	if err := r.DB(ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) CreateBarista(ctx context.Context, barista *models.Barista) error {
	return r.DB(ctx).Create(barista).Error
}

// DeleteBarista drops the barista role row and its schedules.
func (r *repository) DeleteBarista(ctx context.Context, ssn string) error {
	q := r.DB(ctx)
	if err := q.Where("barista_ssn = ?", ssn).Delete(&models.WorkSchedule{}).Error; err != nil {
		return err
	}
	return q.Where("ssn = ?", ssn).Delete(&models.Barista{}).Error
}

func (r *repository) SetSalary(ctx context.Context, ssn string, salary decimal.Decimal) error {
	return r.DB(ctx).Model(&models.Barista{}).Where("ssn = ?", ssn).Update("salary", salary).Error
}

func (r *repository) CreateSchedule(ctx context.Context, schedule *models.WorkSchedule) error {
	return r.DB(ctx).Create(schedule).Error
}

func (r *repository) ListSchedules(ctx context.Context, ssn string) ([]models.WorkSchedule, error) {
	var out []models.WorkSchedule
	if err := r.DB(ctx).Where("barista_ssn = ?", ssn).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
