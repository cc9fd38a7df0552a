package model

import (
	"strings"
	"time"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

const (
	PermissionUsersRead      = "users:read"
	PermissionUsersWrite     = "users:write"
	PermissionSessionsRead   = "sessions:read"
	PermissionSessionsRevoke = "sessions:revoke"
)

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"password_hash"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	Status        UserStatus `json:"status"`
	InstitutionID *string    `json:"institution_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Public strips the password hash.
func (u User) Public() AuthUser {
	perms := make([]string, len(u.Permissions))
	copy(perms, u.Permissions)

	return AuthUser{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		Permissions:   perms,
		Status:        u.Status,
		InstitutionID: u.InstitutionID,
	}
}

type AuthUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	Status        UserStatus `json:"status"`
	InstitutionID *string    `json:"institutionId,omitempty"`
}

func (u AuthUser) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

type UpdateUserStatusRequest struct {
	Status UserStatus `json:"status"`
}
