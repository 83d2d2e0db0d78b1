// internal/domain/models/roles.go
package models

import "strings"

// Role is the application role stored on a user profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleAlumni  Role = "alumni"
	RoleAdmin   Role = "admin"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleStudent, RoleAlumni, RoleAdmin}

// ParseRole normalizes a stored or submitted role. Empty or unknown values
// resolve to RoleStudent, matching how profiles without a role are treated.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAlumni:
		return RoleAlumni
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// IsValidRole reports whether s names a known role exactly (after trimming and lowercasing).
func IsValidRole(s string) bool {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent, RoleAlumni, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a role may be chosen at sign-up.
// Admin is granted only by another admin.
func (r Role) SelfAssignable() bool {
	return r == RoleStudent || r == RoleAlumni
}
