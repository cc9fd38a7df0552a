package model

import (
	"errors"
	"time"
)

type DeviceInfo struct {
	UserAgent string `json:"userAgent"`
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	Device    string `json:"device"`
	IsMobile  bool   `json:"isMobile"`
}

type Session struct {
	UserID        string     `json:"userId"`
	SessionID     string     `json:"sessionId"`
	AccessToken   string     `json:"accessToken"`
	RefreshToken  string     `json:"refreshToken"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastAccess    time.Time  `json:"lastAccess"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	DeviceInfo    DeviceInfo `json:"deviceInfo"`
	ClientAddress string     `json:"clientAddress"`
	Active        bool       `json:"active"`
}

func (s Session) Validate() error {
	if s.UserID == "" || s.SessionID == "" {
		return errors.New("session record is missing user or session id")
	}
	return nil
}

type RefreshRecord struct {
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId"`
	RefreshToken string    `json:"refreshToken"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r RefreshRecord) Validate() error {
	if r.UserID == "" || r.RefreshToken == "" {
		return errors.New("refresh record is missing user id or token")
	}
	return nil
}

// AuthSession is the resolved identity attached to an authenticated request.
type AuthSession struct {
	User    AuthUser     `json:"user"`
	Session Session      `json:"-"`
	Payload TokenPayload `json:"-"`
}

type LoginResult struct {
	User         AuthUser `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	SessionID    string   `json:"sessionId"`
	ExpiresIn    int64    `json:"expiresIn"`
}

type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}
