package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Plan, error)
	List(ctx context.Context, db *gorm.DB, active *bool) ([]Plan, error)
	Update(ctx context.Context, db *gorm.DB, plan *Plan) error
}
