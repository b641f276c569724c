package models

import (
	"strconv"
	"strings"
)

// AdminUserID identifies the bootstrap wildcard administrator.
const AdminUserID = "admin"

// User is a system account. Code is a short numeric credential stored only as a bcrypt hash.
type User struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	CodeHash          string       `json:"codeHash"`
	Permissions       []Permission `json:"permissions"`
	ManagedTeacherIDs []string     `json:"managedTeacherIds,omitempty"`
	SchoolName        string       `json:"schoolName,omitempty"`
}

// IsWildcard reports whether the user holds the "all" token.
func (u *User) IsWildcard() bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == PermissionAll {
			return true
		}
	}
	return false
}

// HasPermission is true when the user holds the wildcard or the exact token.
func (u *User) HasPermission(p Permission) bool {
	if u == nil {
		return false
	}
	for _, held := range u.Permissions {
		if held == PermissionAll || held == p {
			return true
		}
	}
	return false
}

// Undeletable marks the bootstrap administrator.
func (u *User) Undeletable() bool {
	return u != nil && u.ID == AdminUserID && u.IsWildcard()
}

// Fingerprint is a stable string covering every field that influences scoping.
// Each part is length-prefixed so distinct users never share a fingerprint.
func (u *User) Fingerprint() string {
	if u == nil {
		return ""
	}
	var b strings.Builder
	part := func(v string) {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	part(u.ID)
	part(u.SchoolName)
	b.WriteString(strconv.Itoa(len(u.Permissions)))
	b.WriteByte('#')
	for _, p := range u.Permissions {
		part(string(p))
	}
	b.WriteString(strconv.Itoa(len(u.ManagedTeacherIDs)))
	b.WriteByte('#')
	for _, id := range u.ManagedTeacherIDs {
		part(id)
	}
	return b.String()
}
