package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-auth-session/internal/event"
	"go-auth-session/internal/metrics"
	"go-auth-session/internal/model"
	"go-auth-session/internal/store"
	"go-auth-session/internal/token"
	"go-auth-session/pkg/apierror"
)

const defaultSessionTTL = 24 * time.Hour

// UserDirectory is the read side of wherever accounts live.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
}

type AuthOptions struct {
	// SessionTTL is renewed on every validated request.
	SessionTTL time.Duration
	Bus        event.Bus
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type AuthService struct {
	users      UserDirectory
	codec      *token.Codec
	kv         store.Store
	bus        event.Bus
	metrics    *metrics.Metrics
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users UserDirectory, codec *token.Codec, kv store.Store, opts AuthOptions) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &AuthService{
		users:      users,
		codec:      codec,
		kv:         kv,
		bus:        opts.Bus,
		metrics:    opts.Metrics,
		sessionTTL: opts.SessionTTL,
		now:        opts.Now,
	}
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy bcrypt hash: %v", err))
	}
	return hash
})

func (s *AuthService) Login(ctx context.Context, email string, password string, device model.DeviceInfo, clientAddress string) (model.LoginResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return model.LoginResult{}, s.loginFailed(email, clientAddress, apierror.InvalidCredentials())
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return model.LoginResult{}, s.loginFailed(email, clientAddress, apierror.InvalidCredentials())
	}
	if err != nil {
		return model.LoginResult{}, s.loginFailed(email, clientAddress, apierror.Internal(fmt.Errorf("find user by email: %w", err)))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.LoginResult{}, s.loginFailed(email, clientAddress, apierror.InvalidCredentials())
	}
	if !user.IsActive() {
		return model.LoginResult{}, s.loginFailed(email, clientAddress, apierror.InvalidCredentials())
	}

	tokens, session, err := s.openSession(ctx, user, device, clientAddress)
	if err != nil {
		return model.LoginResult{}, s.loginFailed(email, clientAddress, err)
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	s.publish(event.Event{
		Type:          event.TypeSessionCreated,
		ActorID:       user.ID,
		SessionID:     session.SessionID,
		ClientAddress: clientAddress,
		Payload:       map[string]any{"device": device.Device, "browser": device.Browser, "os": device.OS},
	})

	return model.LoginResult{
		User:         user.Public(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		SessionID:    tokens.SessionID,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Refresh rotates a refresh token. The presented token is consumed whether or not the
// rest of the rotation succeeds, and the new pair belongs to a new session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.RefreshResult{}, s.refreshFailed("", apierror.Unauthorized())
	}

	payload, err := s.codec.Verify(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		return model.RefreshResult{}, s.refreshFailed("", err)
	}

	var record model.RefreshRecord
	if err := s.takeRecord(ctx, store.RefreshKey(payload.UserID, refreshToken), &record); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.RefreshResult{}, s.refreshFailed(payload.UserID, apierror.RefreshTokenExpired())
		}
		return model.RefreshResult{}, s.refreshFailed(payload.UserID, apierror.Internal(err))
	}
	if record.UserID != payload.UserID || record.RefreshToken != refreshToken {
		return model.RefreshResult{}, s.refreshFailed(payload.UserID, apierror.RefreshTokenExpired())
	}

	user, err := s.activeUser(ctx, payload.UserID)
	if err != nil {
		return model.RefreshResult{}, s.refreshFailed(payload.UserID, err)
	}

	oldKey := store.SessionKey(user.ID, record.SessionID)
	var previous model.Session
	if err := s.takeRecord(ctx, oldKey, &previous); err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.RefreshResult{}, s.refreshFailed(user.ID, apierror.Internal(err))
	}
	if err := s.kv.Delete(ctx, store.SessionRefreshKey(user.ID, record.SessionID)); err != nil {
		return model.RefreshResult{}, s.refreshFailed(user.ID, apierror.Internal(fmt.Errorf("delete session refresh index: %w", err)))
	}

	tokens, session, err := s.openSession(ctx, user, previous.DeviceInfo, previous.ClientAddress)
	if err != nil {
		return model.RefreshResult{}, s.refreshFailed(user.ID, err)
	}

	s.metrics.Refresh(metrics.OutcomeSuccess)
	s.publish(event.Event{
		Type:          event.TypeSessionRefreshed,
		ActorID:       user.ID,
		SessionID:     session.SessionID,
		ClientAddress: session.ClientAddress,
		Payload:       map[string]any{"previous_session_id": record.SessionID},
	})

	return model.RefreshResult{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the session behind an access token. Only a value that is not a JWT at
// all is rejected. Expired tokens are accepted so a client can always clean up, and a JWT
// that fails verification has nothing to revoke. Repeating a logout is harmless.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" || token.Malformed(accessToken) {
		return apierror.BadRequest("invalid token", "")
	}

	payload, err := s.codec.Decode(accessToken, model.TokenTypeAccess)
	if err != nil {
		slog.Debug("logout ignored unverifiable token")
		return nil
	}

	if err := s.blacklist(ctx, accessToken, payload.ExpiresAt); err != nil {
		return err
	}

	if _, err := s.revokeSession(ctx, payload.UserID, payload.SessionID); err != nil {
		return err
	}

	s.metrics.Logout()
	s.publish(event.Event{
		Type:      event.TypeSessionRevoked,
		ActorID:   payload.UserID,
		SessionID: payload.SessionID,
		Payload:   map[string]any{"reason": "logout"},
	})
	return nil
}

// RevokeSession ends another session administratively. A live session's access token is
// blacklisted for the rest of its lifetime; an idled-out session still loses its refresh
// record. SESSION_EXPIRED means nothing was left to revoke.
func (s *AuthService) RevokeSession(ctx context.Context, userID string, sessionID string, actorID string) error {
	var session model.Session
	err := s.getRecord(ctx, store.SessionKey(userID, sessionID), &session)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return apierror.Internal(err)
	}

	if err == nil && session.AccessToken != "" {
		if payload, decodeErr := s.codec.Decode(session.AccessToken, model.TokenTypeAccess); decodeErr == nil {
			if err := s.blacklist(ctx, session.AccessToken, payload.ExpiresAt); err != nil {
				return err
			}
		}
	}

	found, err := s.revokeSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !found {
		return apierror.SessionExpired()
	}

	s.publish(event.Event{
		Type:      event.TypeSessionRevoked,
		ActorID:   actorID,
		SessionID: sessionID,
		Payload:   map[string]any{"reason": "admin", "user_id": userID},
	})
	return nil
}

// ValidateAccess resolves an access token to its live session and renews the session TTL.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (*model.AuthSession, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, apierror.TokenRequired()
	}

	payload, err := s.codec.Verify(accessToken, model.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	_, err = s.kv.Get(ctx, store.BlacklistKey(accessToken))
	if err == nil {
		return nil, apierror.TokenBlacklisted()
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apierror.Internal(fmt.Errorf("check blacklist: %w", err))
	}

	key := store.SessionKey(payload.UserID, payload.SessionID)
	var session model.Session
	if err := s.getRecord(ctx, key, &session); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierror.SessionExpired()
		}
		return nil, apierror.Internal(err)
	}
	if !session.Active || session.SessionID != payload.SessionID || session.UserID != payload.UserID {
		return nil, apierror.SessionExpired()
	}

	user, err := s.activeUser(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session.LastAccess = now
	session.ExpiresAt = now.Add(s.sessionTTL)
	data, err := json.Marshal(session)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("encode session: %w", err))
	}
	renewed, err := s.kv.Replace(ctx, key, data, s.sessionTTL)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("renew session: %w", err))
	}
	if !renewed {
		return nil, apierror.SessionExpired()
	}
	s.metrics.SessionRenewed()

	return &model.AuthSession{User: user.Public(), Session: session, Payload: payload}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) openSession(ctx context.Context, user model.User, device model.DeviceInfo, clientAddress string) (model.IssuedTokens, model.Session, error) {
	tokens, err := s.codec.Issue(user, "")
	if err != nil {
		return model.IssuedTokens{}, model.Session{}, apierror.Internal(err)
	}

	now := s.now()
	session := model.Session{
		UserID:        user.ID,
		SessionID:     tokens.SessionID,
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		CreatedAt:     now,
		LastAccess:    now,
		ExpiresAt:     now.Add(s.sessionTTL),
		DeviceInfo:    device,
		ClientAddress: clientAddress,
		Active:        true,
	}
	sessionKey := store.SessionKey(user.ID, session.SessionID)
	if err := s.putRecord(ctx, sessionKey, session, s.sessionTTL); err != nil {
		return model.IssuedTokens{}, model.Session{}, apierror.Internal(err)
	}

	record := model.RefreshRecord{
		UserID:       user.ID,
		SessionID:    session.SessionID,
		RefreshToken: tokens.RefreshToken,
		CreatedAt:    now,
	}
	refreshKey := store.RefreshKey(user.ID, tokens.RefreshToken)
	if err := s.putRecord(ctx, refreshKey, record, s.codec.RefreshTTL()); err != nil {
		s.discard(ctx, session.SessionID, sessionKey)
		return model.IssuedTokens{}, model.Session{}, apierror.Internal(err)
	}

	// The index lets logout find the refresh record after the session has idled out.
	err = s.kv.Set(ctx, store.SessionRefreshKey(user.ID, session.SessionID), []byte(refreshKey), s.codec.RefreshTTL())
	if err != nil {
		s.discard(ctx, session.SessionID, sessionKey, refreshKey)
		return model.IssuedTokens{}, model.Session{}, apierror.Internal(fmt.Errorf("write session refresh index: %w", err))
	}

	return tokens, session, nil
}

// discard removes the keys of a half-written session.
func (s *AuthService) discard(ctx context.Context, sessionID string, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			slog.Warn("orphaned session key after failed session write", "session_id", sessionID, "error", err)
		}
	}
}

// revokeSession deletes a session with its refresh record and index. The refresh record is
// reached through the index, so it goes even when the session itself has expired. found
// reports whether the session or its index still existed.
func (s *AuthService) revokeSession(ctx context.Context, userID string, sessionID string) (bool, error) {
	var session model.Session
	err := s.takeRecord(ctx, store.SessionKey(userID, sessionID), &session)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, apierror.Internal(err)
	}
	sessionFound := err == nil

	refreshKeys := make([]string, 0, 2)
	if sessionFound && session.RefreshToken != "" {
		refreshKeys = append(refreshKeys, store.RefreshKey(userID, session.RefreshToken))
	}

	indexed, err := s.kv.Take(ctx, store.SessionRefreshKey(userID, sessionID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return sessionFound, apierror.Internal(fmt.Errorf("take session refresh index: %w", err))
	}
	indexFound := err == nil
	if indexFound && len(indexed) > 0 {
		refreshKeys = append(refreshKeys, string(indexed))
	}

	for _, key := range refreshKeys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return true, apierror.Internal(fmt.Errorf("delete refresh record: %w", err))
		}
	}
	return sessionFound || indexFound, nil
}

// blacklist is a no-op for tokens that have already expired.
func (s *AuthService) blacklist(ctx context.Context, accessToken string, expiresAt int64) error {
	remaining := time.Unix(expiresAt, 0).Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.kv.Set(ctx, store.BlacklistKey(accessToken), []byte("true"), remaining); err != nil {
		return apierror.Internal(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

func (s *AuthService) activeUser(ctx context.Context, userID string) (model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.UserNotFound()
	}
	if err != nil {
		return model.User{}, apierror.Internal(fmt.Errorf("find user by id: %w", err))
	}
	if !user.IsActive() {
		return model.User{}, apierror.UserInactive()
	}
	return user, nil
}

type validatable interface {
	Validate() error
}

func (s *AuthService) putRecord(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.kv.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *AuthService) getRecord(ctx context.Context, key string, dst validatable) error {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("read record: %w", err)
	}
	return decodeRecord(data, dst)
}

func (s *AuthService) takeRecord(ctx context.Context, key string, dst validatable) error {
	data, err := s.kv.Take(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("take record: %w", err)
	}
	return decodeRecord(data, dst)
}

func decodeRecord(data []byte, dst validatable) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", model.ErrRecordMalformed, err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrRecordMalformed, err)
	}
	return nil
}

func (s *AuthService) loginFailed(email string, clientAddress string, err error) error {
	code := apierror.CodeOf(err)
	s.metrics.Login(code)
	if code == apierror.CodeInternal {
		slog.Error("login failed", "error", err)
	}
	s.publish(event.Event{
		Type:          event.TypeLoginFailed,
		ClientAddress: clientAddress,
		Payload:       map[string]any{"email": email, "reason": code},
	})
	return err
}

func (s *AuthService) refreshFailed(userID string, err error) error {
	code := apierror.CodeOf(err)
	s.metrics.Refresh(code)
	if code == apierror.CodeInternal {
		slog.Error("token refresh failed", "error", err)
	}
	s.publish(event.Event{
		Type:    event.TypeRefreshRejected,
		ActorID: userID,
		Payload: map[string]any{"reason": code},
	})
	return err
}

func (s *AuthService) publish(e event.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}
