package models

import "github.com/golang-jwt/jwt/v5"

// Session is the authorization context of a request.
type Session struct {
	User           *User
	SelectedSchool string
	AcademicYear   string
	Schools        []string
}

// HasPermission delegates to the session user; a missing user holds nothing.
func (s *Session) HasPermission(p Permission) bool {
	if s == nil {
		return false
	}
	return s.User.HasPermission(p)
}

// Valid is true when both a user and a school are selected.
func (s *Session) Valid() bool {
	return s != nil && s.User != nil && s.SelectedSchool != ""
}

// UserID returns the session user's id or an empty string.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// SessionClaims is the JWT payload issued at login.
type SessionClaims struct {
	UserID       string `json:"userId"`
	School       string `json:"school"`
	AcademicYear string `json:"academicYear"`
	jwt.RegisteredClaims
}
