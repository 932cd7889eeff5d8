package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Driver messages for the dialects in dialect.go. Codes: postgres 23505/23514,
// mysql 1062/3819, sqlite 2067/275.
var (
	duplicateKeyMarkers = []string{
		"duplicate key value violates unique constraint",
		"sqlstate 23505",
		"error 1062",
		"unique constraint failed",
	}
	checkViolationMarkers = []string{
		"violates check constraint",
		"sqlstate 23514",
		"error 3819",
		"check constraint failed",
	}
)

// IsDuplicateKeyErr reports a unique index violation.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return containsAny(err, duplicateKeyMarkers)
}

// IsCheckViolationErr reports a CHECK constraint violation, e.g. negative usage
// counters written past service validation.
func IsCheckViolationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	return containsAny(err, checkViolationMarkers)
}

func containsAny(err error, markers []string) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
