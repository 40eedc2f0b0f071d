package enums

import (
	"fmt"
	"strings"
)

// DayOfWeek names the day a barista shift falls on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

var validDaysOfWeek = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d DayOfWeek) IsValid() bool {
	for _, candidate := range validDaysOfWeek {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDayOfWeek accepts case-insensitive day names.
func ParseDayOfWeek(value string) (DayOfWeek, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDaysOfWeek {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid day of week %q", value)
}
