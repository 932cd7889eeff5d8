package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	if subscription == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var s subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	if subscription == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(subscription).Error
}
