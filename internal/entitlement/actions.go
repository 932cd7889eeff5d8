package entitlement

import (
	"strings"

	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
)

// Permission is one of the four canonical CRUD verbs.
type Permission string

const (
	PermissionCreate Permission = "create"
	PermissionRead   Permission = "read"
	PermissionUpdate Permission = "update"
	PermissionDelete Permission = "delete"
)

var actionSynonyms = map[string]Permission{
	"create": PermissionCreate,
	"read":   PermissionRead,
	"view":   PermissionRead,
	"list":   PermissionRead,
	"update": PermissionUpdate,
	"edit":   PermissionUpdate,
	"delete": PermissionDelete,
	"remove": PermissionDelete,
}

// CanonicalPermission maps an action verb to its permission key, ignoring case.
func CanonicalPermission(action string) (Permission, bool) {
	p, ok := actionSynonyms[strings.ToLower(strings.TrimSpace(action))]
	return p, ok
}

// Allows reads the flag for p. Unknown keys are false.
func Allows(set plandomain.PermissionSet, p Permission) bool {
	switch p {
	case PermissionCreate:
		return set.Create
	case PermissionRead:
		return set.Read
	case PermissionUpdate:
		return set.Update
	case PermissionDelete:
		return set.Delete
	default:
		return false
	}
}

func allGranted() plandomain.PermissionSet {
	return plandomain.PermissionSet{Create: true, Read: true, Update: true, Delete: true}
}
