package employees

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/validation"
)

const (
	shiftLayout    = "15:04"
	ownershipScale = 4
)

var fullOwnership = decimal.NewFromInt(100)

// Service manages staff records, roles and barista schedules.
type Service interface {
	Create(ctx context.Context, input CreateEmployeeInput) (*EmployeeDTO, error)
	Get(ctx context.Context, ssn string) (*EmployeeDTO, error)
	List(ctx context.Context) ([]EmployeeDTO, error)
	Update(ctx context.Context, ssn string, input UpdateEmployeeInput) (*EmployeeDTO, error)
	Delete(ctx context.Context, ssn string) error
	Role(ctx context.Context, ssn string) (enums.EmployeeRole, error)
	PromoteToManager(ctx context.Context, ssn string) (*EmployeeDTO, error)
	AddSchedule(ctx context.Context, ssn string, input AddScheduleInput) (*models.WorkSchedule, error)
	Schedules(ctx context.Context, ssn string) ([]models.WorkSchedule, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Hasher     passwordHasher
	Logger     *logger.Logger
}

type service struct {
	repo   Repository
	db     txRunner
	hasher passwordHasher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("employee repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	return &service{
		repo:   params.Repository,
		db:     params.DB,
		hasher: params.Hasher,
		logg:   params.Logger,
	}, nil
}

// Create adds an employee in the given role. A new manager takes an equal
// share of ownership with the existing managers.
func (s *service) Create(ctx context.Context, input CreateEmployeeInput) (*EmployeeDTO, error) {
	input.SSN = validation.SanitizeString(input.SSN, 0)
	input.FirstName = validation.SanitizeString(input.FirstName, 0)
	input.LastName = validation.SanitizeString(input.LastName, 0)
	input.Email = strings.ToLower(validation.SanitizeString(input.Email, 0))
	if role, err := enums.ParseEmployeeRole(string(input.Role)); err == nil {
		input.Role = role
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.Salary.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "salary cannot be negative")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *EmployeeDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing, err := repo.Find(ctx, input.SSN); err != nil {
			return db.Classify(err, "load employee")
		} else if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "ssn already registered")
		}
		if existing, err := repo.FindByEmail(ctx, input.Email); err != nil {
			return db.Classify(err, "load employee by email")
		} else if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}

		emp := &models.Employee{
			SSN:          input.SSN,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			Email:        input.Email,
			PasswordHash: hash,
		}
		if err := repo.Create(ctx, emp); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "employee already exists")
			}
			return db.Classify(err, "insert employee")
		}

		switch input.Role {
		case enums.EmployeeRoleManager:
			if err := repo.CreateManager(ctx, &models.Manager{SSN: emp.SSN, OwnershipPercentage: decimal.Zero}); err != nil {
				return db.Classify(err, "insert manager")
			}
			if err := rebalanceOwnership(ctx, repo); err != nil {
				return err
			}
		case enums.EmployeeRoleBarista:
			if err := repo.CreateBarista(ctx, &models.Barista{SSN: emp.SSN, Salary: input.Salary}); err != nil {
				return db.Classify(err, "insert barista")
			}
		}

		dto, err := s.load(ctx, repo, emp.SSN)
		if err != nil {
			return err
		}
		created = dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithEmployeeSSN(ctx, created.SSN)
		s.logg.Info(s.logg.WithField(logCtx, "role", created.Role), "employee created")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, ssn string) (*EmployeeDTO, error) {
	return s.load(ctx, s.repo, strings.TrimSpace(ssn))
}

func (s *service) List(ctx context.Context) ([]EmployeeDTO, error) {
	emps, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.Classify(err, "list employees")
	}
	managers, err := s.repo.ListManagers(ctx)
	if err != nil {
		return nil, db.Classify(err, "list managers")
	}
	baristas, err := s.repo.ListBaristas(ctx)
	if err != nil {
		return nil, db.Classify(err, "list baristas")
	}

	managerBySSN := make(map[string]*models.Manager, len(managers))
	for i := range managers {
		managerBySSN[managers[i].SSN] = &managers[i]
	}
	baristaBySSN := make(map[string]*models.Barista, len(baristas))
	for i := range baristas {
		baristaBySSN[baristas[i].SSN] = &baristas[i]
	}

	out := make([]EmployeeDTO, 0, len(emps))
	for _, emp := range emps {
		out = append(out, toDTO(emp, managerBySSN[emp.SSN], baristaBySSN[emp.SSN]))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, ssn string, input UpdateEmployeeInput) (*EmployeeDTO, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if input.FirstName != nil {
		updates["first_name"] = validation.SanitizeString(*input.FirstName, 0)
	}
	if input.LastName != nil {
		updates["last_name"] = validation.SanitizeString(*input.LastName, 0)
	}
	if input.Email != nil {
		updates["email"] = strings.ToLower(validation.SanitizeString(*input.Email, 0))
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		updates["password_hash"] = hash
	}
	if input.Salary != nil && input.Salary.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "salary cannot be negative")
	}

	var updated *EmployeeDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		emp, err := repo.FindForUpdate(ctx, ssn)
		if err != nil {
			return db.Classify(err, "load employee")
		}
		if emp == nil {
			return notFound(ssn)
		}
		if email, ok := updates["email"].(string); ok && email != emp.Email {
			other, err := repo.FindByEmail(ctx, email)
			if err != nil {
				return db.Classify(err, "load employee by email")
			}
			if other != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
		}
		if err := repo.Update(ctx, ssn, updates); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return db.Classify(err, "update employee")
		}
		if input.Salary != nil {
			barista, err := repo.FindBarista(ctx, ssn)
			if err != nil {
				return db.Classify(err, "load barista")
			}
			if barista == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "only baristas carry a salary")
			}
			if err := repo.SetSalary(ctx, ssn, *input.Salary); err != nil {
				return db.Classify(err, "update salary")
			}
		}
		dto, err := s.load(ctx, repo, ssn)
		if err != nil {
			return err
		}
		updated = dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the employee, its role rows and schedules. Remaining
// managers split ownership equally.
func (s *service) Delete(ctx context.Context, ssn string) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		emp, err := repo.FindForUpdate(ctx, ssn)
		if err != nil {
			return db.Classify(err, "load employee")
		}
		if emp == nil {
			return notFound(ssn)
		}
		manager, err := repo.FindManager(ctx, ssn)
		if err != nil {
			return db.Classify(err, "load manager")
		}
		if err := repo.Delete(ctx, ssn); err != nil {
			return db.Classify(err, "delete employee")
		}
		if manager != nil {
			return rebalanceOwnership(ctx, repo)
		}
		return nil
	})
}

// Role answers whether the employee is a manager or a barista.
func (s *service) Role(ctx context.Context, ssn string) (enums.EmployeeRole, error) {
	dto, err := s.Get(ctx, ssn)
	if err != nil {
		return "", err
	}
	if dto.Role == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("employee %q has no role", ssn))
	}
	return dto.Role, nil
}

// PromoteToManager turns a barista into a manager. The barista row and its
// schedules are removed and ownership is rebalanced.
func (s *service) PromoteToManager(ctx context.Context, ssn string) (*EmployeeDTO, error) {
	var promoted *EmployeeDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		emp, err := repo.FindForUpdate(ctx, ssn)
		if err != nil {
			return db.Classify(err, "load employee")
		}
		if emp == nil {
			return notFound(ssn)
		}
		manager, err := repo.FindManager(ctx, ssn)
		if err != nil {
			return db.Classify(err, "load manager")
		}
		if manager != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "employee is already a manager")
		}
		if err := repo.DeleteBarista(ctx, ssn); err != nil {
			return db.Classify(err, "delete barista role")
		}
		if err := repo.CreateManager(ctx, &models.Manager{SSN: ssn, OwnershipPercentage: decimal.Zero}); err != nil {
			return db.Classify(err, "insert manager")
		}
		if err := rebalanceOwnership(ctx, repo); err != nil {
			return err
		}
		dto, err := s.load(ctx, repo, ssn)
		if err != nil {
			return err
		}
		promoted = dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// AddSchedule records a weekly shift for a barista.
func (s *service) AddSchedule(ctx context.Context, ssn string, input AddScheduleInput) (*models.WorkSchedule, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	day, err := enums.ParseDayOfWeek(input.DayOfWeek)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid day_of_week")
	}
	start, err := time.Parse(shiftLayout, strings.TrimSpace(input.StartTime))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "start_time must be HH:MM")
	}
	end, err := time.Parse(shiftLayout, strings.TrimSpace(input.EndTime))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "end_time must be HH:MM")
	}
	if !end.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end_time must be after start_time")
	}

	var schedule *models.WorkSchedule
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := requireBarista(ctx, repo, ssn); err != nil {
			return err
		}
		row := &models.WorkSchedule{
			BaristaSSN: ssn,
			DayOfWeek:  day,
			StartTime:  start.Format(shiftLayout),
			EndTime:    end.Format(shiftLayout),
		}
		if err := repo.CreateSchedule(ctx, row); err != nil {
			return db.Classify(err, "insert schedule")
		}
		schedule = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *service) Schedules(ctx context.Context, ssn string) ([]models.WorkSchedule, error) {
	if err := requireBarista(ctx, s.repo, ssn); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSchedules(ctx, ssn)
	if err != nil {
		return nil, db.Classify(err, "list schedules")
	}
	return rows, nil
}

func (s *service) load(ctx context.Context, repo Repository, ssn string) (*EmployeeDTO, error) {
	emp, err := repo.Find(ctx, ssn)
	if err != nil {
		return nil, db.Classify(err, "load employee")
	}
	if emp == nil {
		return nil, notFound(ssn)
	}
	manager, err := repo.FindManager(ctx, ssn)
	if err != nil {
		return nil, db.Classify(err, "load manager")
	}
	barista, err := repo.FindBarista(ctx, ssn)
	if err != nil {
		return nil, db.Classify(err, "load barista")
	}
	dto := toDTO(*emp, manager, barista)
	return &dto, nil
}

func requireBarista(ctx context.Context, repo Repository, ssn string) error {
	emp, err := repo.Find(ctx, ssn)
	if err != nil {
		return db.Classify(err, "load employee")
	}
	if emp == nil {
		return notFound(ssn)
	}
	barista, err := repo.FindBarista(ctx, ssn)
	if err != nil {
		return db.Classify(err, "load barista")
	}
	if barista == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "schedules apply to baristas only")
	}
	return nil
}

// rebalanceOwnership gives every manager 100/n percent.
func rebalanceOwnership(ctx context.Context, repo Repository) error {
	managers, err := repo.ListManagers(ctx)
	if err != nil {
		return db.Classify(err, "list managers")
	}
	if len(managers) == 0 {
		return nil
	}
	share := fullOwnership.DivRound(decimal.NewFromInt(int64(len(managers))), ownershipScale)
	for _, m := range managers {
		if err := repo.SetOwnership(ctx, m.SSN, share); err != nil {
			return db.Classify(err, "update ownership")
		}
	}
	return nil
}

func notFound(ssn string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("employee %q not found", ssn))
}
