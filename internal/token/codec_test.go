package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

func testUser() model.User {
	return model.User{
		ID:          "user-1",
		Email:       "admin@x.com",
		Role:        "admin",
		Permissions: []string{"users:read", "users:write"},
		Status:      model.UserStatusActive,
	}
}

func newTestCodec(t *testing.T, accessTTL time.Duration, refreshTTL time.Duration, now func() time.Time) *Codec {
	t.Helper()

	codec, err := NewCodec(Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Now:           now,
	})
	require.NoError(t, err)
	return codec
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, apierror.CodeUnauthorized, apierror.CodeOf(err))
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, 15*time.Minute, 7*24*time.Hour, nil)
	user := testUser()

	issued, err := codec.Issue(user, "")
	require.NoError(t, err)
	require.NotEmpty(t, issued.SessionID)
	require.NotEqual(t, issued.AccessToken, issued.RefreshToken)

	access, err := codec.Verify(issued.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, access.UserID)
	require.Equal(t, user.Email, access.Email)
	require.Equal(t, user.Role, access.Role)
	require.Equal(t, user.Permissions, access.Permissions)
	require.Equal(t, issued.SessionID, access.SessionID)
	require.Equal(t, model.TokenTypeAccess, access.Type)
	require.Equal(t, issued.AccessExpiresAt, access.ExpiresAt)

	refresh, err := codec.Verify(issued.RefreshToken, model.TokenTypeRefresh)
	require.NoError(t, err)
	require.Equal(t, issued.SessionID, refresh.SessionID)
	require.Equal(t, model.TokenTypeRefresh, refresh.Type)
	require.NotEqual(t, access.TokenID, refresh.TokenID)
}

func TestIssueKeepsProvidedSessionID(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, time.Minute, time.Hour, nil)
	issued, err := codec.Issue(testUser(), "sess-42")
	require.NoError(t, err)
	require.Equal(t, "sess-42", issued.SessionID)
}

func TestVerifyRejectsZeroTTL(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, 0, 0, nil)
	issued, err := codec.Issue(testUser(), "")
	require.NoError(t, err)

	_, err = codec.Verify(issued.AccessToken, model.TokenTypeAccess)
	requireUnauthorized(t, err)
	_, err = codec.Verify(issued.RefreshToken, model.TokenTypeRefresh)
	requireUnauthorized(t, err)
}

func TestVerifyRejectsTypeMismatch(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, time.Minute, time.Hour, nil)
	issued, err := codec.Issue(testUser(), "")
	require.NoError(t, err)

	_, err = codec.Verify(issued.AccessToken, model.TokenTypeRefresh)
	requireUnauthorized(t, err)
	_, err = codec.Verify(issued.RefreshToken, model.TokenTypeAccess)
	requireUnauthorized(t, err)
	_, err = codec.Verify(issued.AccessToken, model.TokenType("id"))
	requireUnauthorized(t, err)
}

func TestVerifyRejectsForeignAndTamperedTokens(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, time.Minute, time.Hour, nil)
	other, err := NewCodec(Config{AccessSecret: "other-access", RefreshSecret: "other-refresh", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)

	foreign, err := other.Issue(testUser(), "")
	require.NoError(t, err)
	_, err = codec.Verify(foreign.AccessToken, model.TokenTypeAccess)
	requireUnauthorized(t, err)

	issued, err := codec.Issue(testUser(), "")
	require.NoError(t, err)
	parts := strings.Split(issued.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = codec.Verify(tampered, model.TokenTypeAccess)
	requireUnauthorized(t, err)

	_, err = codec.Verify("not-a-token", model.TokenTypeAccess)
	requireUnauthorized(t, err)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, time.Minute, time.Hour, nil)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SessionID: "sess-1",
		Type:      model.TokenTypeAccess,
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(raw, model.TokenTypeAccess)
	requireUnauthorized(t, err)
}

func TestVerifyHonoursClock(t *testing.T) {
	t.Parallel()

	current := time.Unix(1_700_000_000, 0).UTC()
	codec := newTestCodec(t, 15*time.Minute, 7*24*time.Hour, func() time.Time { return current })

	issued, err := codec.Issue(testUser(), "")
	require.NoError(t, err)

	current = current.Add(14 * time.Minute)
	_, err = codec.Verify(issued.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = codec.Verify(issued.AccessToken, model.TokenTypeAccess)
	requireUnauthorized(t, err)

	current = current.Add(7*24*time.Hour + time.Second)
	_, err = codec.Verify(issued.RefreshToken, model.TokenTypeRefresh)
	requireUnauthorized(t, err)
}

func TestDecodeToleratesExpiryButNotBadSignature(t *testing.T) {
	t.Parallel()

	current := time.Unix(1_700_000_000, 0).UTC()
	codec := newTestCodec(t, time.Minute, time.Hour, func() time.Time { return current })

	issued, err := codec.Issue(testUser(), "sess-1")
	require.NoError(t, err)

	current = current.Add(time.Hour)
	payload, err := codec.Decode(issued.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, "sess-1", payload.SessionID)

	_, err = codec.Decode(issued.AccessToken+"x", model.TokenTypeAccess)
	requireUnauthorized(t, err)
}

func TestMalformedOnlyForNonJWTs(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, time.Minute, time.Hour, nil)
	issued, err := codec.Issue(testUser(), "")
	require.NoError(t, err)

	foreign, err := NewCodec(Config{AccessSecret: "other-access", RefreshSecret: "other-refresh", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	foreignIssued, err := foreign.Issue(testUser(), "")
	require.NoError(t, err)

	for _, raw := range []string{"", "garbage", "a.b.c", "not.a.jwt.at.all"} {
		require.True(t, Malformed(raw), raw)
	}
	require.False(t, Malformed(issued.AccessToken))
	require.False(t, Malformed(issued.RefreshToken))
	require.False(t, Malformed(foreignIssued.AccessToken))
}

func TestNewCodecValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(Config{AccessSecret: "same", RefreshSecret: "same"})
	require.Error(t, err)

	_, err = NewCodec(Config{AccessSecret: "a"})
	require.Error(t, err)

	_, err = NewCodec(Config{AccessSecret: "a", RefreshSecret: "b", AccessTTL: -time.Second})
	require.Error(t, err)
}
