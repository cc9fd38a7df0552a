package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-auth-session/internal/model"
)

type seedableDirectory interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u model.User) error
}

// AdminPermissions is granted to the seeded administrator.
var AdminPermissions = []string{
	model.PermissionUsersRead,
	model.PermissionUsersWrite,
	model.PermissionSessionsRead,
	model.PermissionSessionsRevoke,
}

// SeedAdmin creates an administrator when the directory is empty and both email and
// password are configured. It never touches a populated directory.
func SeedAdmin(ctx context.Context, dir seedableDirectory, email string, password string, cost int) error {
	email = model.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	count, err := dir.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	admin := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         "admin",
		Permissions:  append([]string(nil), AdminPermissions...),
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := dir.Create(ctx, admin); err != nil {
		return err
	}

	slog.Info("seeded administrator account", "email", email)
	return nil
}
