package model

import "time"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionView is the client-facing projection of a Session; tokens are never echoed back.
type SessionView struct {
	SessionID     string     `json:"sessionId"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastAccess    time.Time  `json:"lastAccess"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	DeviceInfo    DeviceInfo `json:"deviceInfo"`
	ClientAddress string     `json:"clientAddress"`
}

type MeResponse struct {
	User    AuthUser    `json:"user"`
	Session SessionView `json:"session"`
}

func (s Session) View() SessionView {
	return SessionView{
		SessionID:     s.SessionID,
		CreatedAt:     s.CreatedAt,
		LastAccess:    s.LastAccess,
		ExpiresAt:     s.ExpiresAt,
		DeviceInfo:    s.DeviceInfo,
		ClientAddress: s.ClientAddress,
	}
}
