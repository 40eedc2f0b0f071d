package employees

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/pkg/db/models"
	"github.com/angelmondragon/brewpos-backend/pkg/enums"
)

type CreateEmployeeInput struct {
	SSN       string             `json:"ssn" validate:"required,max=16"`
	FirstName string             `json:"first_name" validate:"required,max=80"`
	LastName  string             `json:"last_name" validate:"required,max=80"`
	Email     string             `json:"email" validate:"required,email,max=254"`
	Password  string             `json:"password" validate:"required,min=8,max=128"`
	Role      enums.EmployeeRole `json:"role" validate:"required,oneof=manager barista"`
	Salary    decimal.Decimal    `json:"salary"`
}

// UpdateEmployeeInput applies only the fields that are set.
type UpdateEmployeeInput struct {
	FirstName *string          `json:"first_name,omitempty" validate:"omitempty,min=1,max=80"`
	LastName  *string          `json:"last_name,omitempty" validate:"omitempty,min=1,max=80"`
	Email     *string          `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password  *string          `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	Salary    *decimal.Decimal `json:"salary,omitempty"`
}

type AddScheduleInput struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// EmployeeDTO is an employee without credentials, with its role facts.
type EmployeeDTO struct {
	SSN                 string             `json:"ssn"`
	FirstName           string             `json:"first_name"`
	LastName            string             `json:"last_name"`
	Email               string             `json:"email"`
	Role                enums.EmployeeRole `json:"role"`
	OwnershipPercentage *decimal.Decimal   `json:"ownership_percentage,omitempty"`
	Salary              *decimal.Decimal   `json:"salary,omitempty"`
}

func toDTO(emp models.Employee, manager *models.Manager, barista *models.Barista) EmployeeDTO {
	dto := EmployeeDTO{
		SSN:       emp.SSN,
		FirstName: emp.FirstName,
		LastName:  emp.LastName,
		Email:     emp.Email,
		Role:      models.RoleFor(manager, barista),
	}
	if manager != nil {
		share := manager.OwnershipPercentage
		dto.OwnershipPercentage = &share
	}
	if barista != nil {
		salary := barista.Salary
		dto.Salary = &salary
	}
	return dto
}
