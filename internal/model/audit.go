package model

type AuditEntry struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	OccurredAt    string `json:"occurred_at"`
	ActorID       string `json:"actor_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	ClientAddress string `json:"client_address,omitempty"`
	Detail        any    `json:"detail,omitempty"`
}

type AuditQuery struct {
	Type      string
	ActorID   string
	SessionID string
	From      string
	To        string
	Page      int
	Limit     int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
