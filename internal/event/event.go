package event

type Type string

const (
	TypeSessionCreated   Type = "session.created"
	TypeSessionRefreshed Type = "session.refreshed"
	TypeSessionRevoked   Type = "session.revoked"
	TypeLoginFailed      Type = "auth.login_failed"
	TypeRefreshRejected  Type = "auth.refresh_rejected"
	TypeUserStatus       Type = "user.status_changed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// ClientAddress is the caller's address as seen by the HTTP layer.
	ClientAddress string `json:"client_address,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
