package models

import "github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"

// Role is the closed set of crew roles. Ordering is by Level, not by name.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleObserver Role = "observer"
)

var roleLevels = map[Role]int{
	RoleOwner:    100,
	RoleAdmin:    80,
	RoleMember:   50,
	RoleObserver: 20,
}

// AllRoles in descending level order.
var AllRoles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleObserver}

// Level returns the role's rank. Panics on an unknown role: enum values are
// validated at the parse boundary, so an invalid one here is a programming
// error, not a runtime condition.
func (r Role) Level() int {
	level, ok := roleLevels[r]
	if !ok {
		panic(errors.InvalidArgument("invalid role: %q", string(r)))
	}
	return level
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// ParseRole validates an externally supplied role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.InvalidArgument("invalid role: %q", s)
	}
	return r, nil
}

// Permission is the closed set of crew permissions, each with a minimum
// role level. A role holds a permission iff its level meets the threshold.
type Permission string

const (
	PermInviteMembers    Permission = "inviteMembers"
	PermRemoveMembers    Permission = "removeMembers"
	PermChangeSettings   Permission = "changeSettings"
	PermPostMessages     Permission = "postMessages"
	PermViewHistory      Permission = "viewHistory"
	PermShareJobs        Permission = "shareJobs"
	PermPostSafetyAlerts Permission = "postSafetyAlerts"
	PermViewMemberInfo   Permission = "viewMemberInfo"
)

var permissionLevels = map[Permission]int{
	PermInviteMembers:    80,
	PermRemoveMembers:    80,
	PermChangeSettings:   80,
	PermPostMessages:     50,
	PermViewHistory:      20,
	PermShareJobs:        50,
	PermPostSafetyAlerts: 50,
	PermViewMemberInfo:   20,
}

var AllPermissions = []Permission{
	PermInviteMembers, PermRemoveMembers, PermChangeSettings, PermPostMessages,
	PermViewHistory, PermShareJobs, PermPostSafetyAlerts, PermViewMemberInfo,
}

// RequiredLevel returns the minimum role level holding this permission.
// Panics on an unknown permission, same contract as Role.Level.
func (p Permission) RequiredLevel() int {
	level, ok := permissionLevels[p]
	if !ok {
		panic(errors.InvalidArgument("invalid permission: %q", string(p)))
	}
	return level
}

func (p Permission) Valid() bool {
	_, ok := permissionLevels[p]
	return ok
}

func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", errors.InvalidArgument("invalid permission: %q", s)
	}
	return p, nil
}
