package enums

import (
	"fmt"
	"strings"
)

// EmployeeRole is the single role an employee holds.
type EmployeeRole string

const (
	EmployeeRoleManager EmployeeRole = "manager"
	EmployeeRoleBarista EmployeeRole = "barista"
)

var validEmployeeRoles = []EmployeeRole{
	EmployeeRoleManager,
	EmployeeRoleBarista,
}

func (r EmployeeRole) IsValid() bool {
	for _, candidate := range validEmployeeRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseEmployeeRole accepts case-insensitive role names.
func ParseEmployeeRole(value string) (EmployeeRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validEmployeeRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid employee role %q", value)
}
