package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brewpos-backend/pkg/enums"
)

// Employee is a staff member keyed by SSN.
type Employee struct {
	SSN          string    `gorm:"column:ssn;primaryKey"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name;not null"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Manager marks an employee as a manager with an ownership share.
type Manager struct {
	SSN                 string          `gorm:"column:ssn;primaryKey"`
	OwnershipPercentage decimal.Decimal `gorm:"column:ownership_percentage;type:numeric(7,4);not null"`
}

// Barista marks an employee as a barista.
type Barista struct {
	SSN    string          `gorm:"column:ssn;primaryKey"`
	Salary decimal.Decimal `gorm:"column:salary;type:numeric(12,2);not null"`
}

// WorkSchedule is one weekly shift for a barista. Times are HH:MM.
type WorkSchedule struct {
	ID         uint            `gorm:"column:id;primaryKey;autoIncrement"`
	BaristaSSN string          `gorm:"column:barista_ssn;not null;index"`
	DayOfWeek  enums.DayOfWeek `gorm:"column:day_of_week;type:text;not null"`
	StartTime  string          `gorm:"column:start_time;not null"`
	EndTime    string          `gorm:"column:end_time;not null"`
}

// RoleFor derives the role from which role row exists.
func RoleFor(manager *Manager, barista *Barista) enums.EmployeeRole {
	if manager != nil {
		return enums.EmployeeRoleManager
	}
	if barista != nil {
		return enums.EmployeeRoleBarista
	}
	return ""
}
