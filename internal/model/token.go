package model

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPayload is what a signed token asserts. Times are epoch seconds.
type TokenPayload struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	SessionID   string    `json:"sessionId"`
	Type        TokenType `json:"type"`
	TokenID     string    `json:"jti"`
	IssuedAt    int64     `json:"issuedAt"`
	ExpiresAt   int64     `json:"expiresAt"`
}

type IssuedTokens struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  int64
	RefreshExpiresAt int64
}
