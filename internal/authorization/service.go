package authorization

import (
	"context"
	"errors"
)

type Service interface {
	Authorize(ctx context.Context, actor Actor, orgID string, object string, action string) error
}

// Actor is the caller as resolved by the transport layer.
type Actor struct {
	Role string
	ID   string
}

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)
