package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Subscription, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Subscription, error)
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
}

// MutationLocker serializes counter updates for one subscription across replicas.
type MutationLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}
