package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "idx_plans_code" (SQLSTATE 23505)`)))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry 'basic' for key 'idx_plans_code'")))
	assert.True(t, IsDuplicateKeyErr(errors.New("constraint failed: UNIQUE constraint failed: plans.code (2067)")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsCheckViolationErr(t *testing.T) {
	assert.False(t, IsCheckViolationErr(nil))
	assert.True(t, IsCheckViolationErr(gorm.ErrCheckConstraintViolated))
	assert.True(t, IsCheckViolationErr(errors.New(`ERROR: new row for relation "subscriptions" violates check constraint "subscriptions_usage_check" (SQLSTATE 23514)`)))
	assert.True(t, IsCheckViolationErr(errors.New("constraint failed: CHECK constraint failed: subscriptions_usage_check (275)")))
	assert.False(t, IsCheckViolationErr(errors.New("UNIQUE constraint failed: plans.code")))
}
