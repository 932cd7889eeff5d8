package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pgbilling/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	if plan == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var p domain.Plan
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Plan, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Plan
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, active *bool) ([]domain.Plan, error) {
	var items []domain.Plan
	stmt := db.WithContext(ctx).Model(&domain.Plan{})
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}
	if err := stmt.Order("base_price ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	if plan == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(plan).Error
}
