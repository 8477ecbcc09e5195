package model

import (
	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOperator UserRole = "OPERATOR"
	UserRoleViewer   UserRole = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

// CanOperate reports whether the user may mutate the registry, export it to
// the database or control live capture.
func (p Principal) CanOperate() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleOperator
}
