package service

import (
	"context"
	"errors"
	"strings"

	"go-auth-session/internal/event"
	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

// UserAdminDirectory is the directory surface needed by operator endpoints.
type UserAdminDirectory interface {
	List(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	SetStatus(ctx context.Context, id string, status model.UserStatus) (model.User, error)
}

type UserService struct {
	users UserAdminDirectory
	bus   event.Bus
}

func NewUserService(users UserAdminDirectory, bus event.Bus) *UserService {
	return &UserService{users: users, bus: bus}
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.AuthUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apierror.Internal(err)
	}

	result := make([]model.AuthUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.Public())
	}
	return result, nil
}

// GetUser returns any account regardless of status; it is not an authentication check.
func (s *UserService) GetUser(ctx context.Context, id string) (model.AuthUser, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.AuthUser{}, userLookupError(err)
	}
	return u.Public(), nil
}

// SetStatus changes an account's status. Sessions of a deactivated user fail their next
// validation with USER_INACTIVE; nothing is revoked eagerly.
func (s *UserService) SetStatus(ctx context.Context, id string, status model.UserStatus, actorID string) (model.AuthUser, error) {
	status = model.UserStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return model.AuthUser{}, apierror.BadRequest("status must be ACTIVE, INACTIVE or SUSPENDED", "status")
	}
	if id == actorID && status != model.UserStatusActive {
		return model.AuthUser{}, apierror.BadRequest("cannot deactivate your own account", "id")
	}

	u, err := s.users.SetStatus(ctx, id, status)
	if err != nil {
		return model.AuthUser{}, userLookupError(err)
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type:    event.TypeUserStatus,
			ActorID: actorID,
			Payload: map[string]any{"user_id": u.ID, "status": string(u.Status)},
		})
	}
	return u.Public(), nil
}

func userLookupError(err error) error {
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.NotFound("user not found", "id")
	}
	return apierror.Internal(err)
}
