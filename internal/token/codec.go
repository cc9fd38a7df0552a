// Package token signs and verifies the access and refresh JWTs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Email       string          `json:"email"`
	Role        string          `json:"role"`
	Permissions []string        `json:"permissions,omitempty"`
	SessionID   string          `json:"sid"`
	Type        model.TokenType `json:"typ"`
}

// Codec is stateless apart from its keys; it is safe for concurrent use.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("token TTLs cannot be negative")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// Issue signs a fresh access/refresh pair. A new session id is generated when sessionID is empty.
func (c *Codec) Issue(user model.User, sessionID string) (model.IssuedTokens, error) {
	if user.ID == "" {
		return model.IssuedTokens{}, errors.New("cannot issue tokens for a user without id")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := c.now()
	accessExp := now.Add(c.accessTTL)
	refreshExp := now.Add(c.refreshTTL)

	accessToken, err := c.sign(c.buildClaims(user, sessionID, model.TokenTypeAccess, now, accessExp), c.accessSecret)
	if err != nil {
		return model.IssuedTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := c.sign(c.buildClaims(user, sessionID, model.TokenTypeRefresh, now, refreshExp), c.refreshSecret)
	if err != nil {
		return model.IssuedTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return model.IssuedTokens{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		SessionID:        sessionID,
		AccessExpiresAt:  jwt.NewNumericDate(accessExp).Unix(),
		RefreshExpiresAt: jwt.NewNumericDate(refreshExp).Unix(),
	}, nil
}

// Verify checks algorithm, signature, expiry and type. Every failure is the same
// UNAUTHORIZED error so callers cannot tell which check tripped.
func (c *Codec) Verify(tokenString string, expected model.TokenType) (model.TokenPayload, error) {
	return c.parse(tokenString, expected, jwt.WithExpirationRequired(), jwt.WithTimeFunc(c.now))
}

// Decode is Verify without the expiry check. The signature must still be valid.
func (c *Codec) Decode(tokenString string, expected model.TokenType) (model.TokenPayload, error) {
	return c.parse(tokenString, expected, jwt.WithoutClaimsValidation())
}

// Malformed reports whether tokenString is not structurally a JWT. A token that is
// well formed but fails verification is not malformed.
func Malformed(tokenString string) bool {
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims{})
	return errors.Is(err, jwt.ErrTokenMalformed)
}

func (c *Codec) parse(tokenString string, expected model.TokenType, opts ...jwt.ParserOption) (model.TokenPayload, error) {
	secret, err := c.secretFor(expected)
	if err != nil {
		return model.TokenPayload{}, apierror.Unauthorized()
	}

	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return model.TokenPayload{}, apierror.Unauthorized()
	}

	cl, ok := parsed.Claims.(*claims)
	if !ok || cl.Type != expected || cl.Subject == "" || cl.SessionID == "" || cl.ExpiresAt == nil {
		return model.TokenPayload{}, apierror.Unauthorized()
	}

	payload := model.TokenPayload{
		UserID:      cl.Subject,
		Email:       cl.Email,
		Role:        cl.Role,
		Permissions: cl.Permissions,
		SessionID:   cl.SessionID,
		Type:        cl.Type,
		TokenID:     cl.ID,
		ExpiresAt:   cl.ExpiresAt.Unix(),
	}
	if cl.IssuedAt != nil {
		payload.IssuedAt = cl.IssuedAt.Unix()
	}

	return payload, nil
}

func (c *Codec) buildClaims(user model.User, sessionID string, typ model.TokenType, issuedAt time.Time, expiresAt time.Time) claims {
	return claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:       user.Email,
		Role:        user.Role,
		Permissions: user.Permissions,
		SessionID:   sessionID,
		Type:        typ,
	}
}

func (c *Codec) sign(cl claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(secret)
}

func (c *Codec) secretFor(typ model.TokenType) ([]byte, error) {
	switch typ {
	case model.TokenTypeAccess:
		return c.accessSecret, nil
	case model.TokenTypeRefresh:
		return c.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token type %q", typ)
	}
}
