package domain

import "time"

// AuditEntry is one row of the session history table. An entry opens when an
// access token is stored and closes when the token is removed. Entries are
// never deleted.
//
// Invariant: for a given SessionKey at most one entry is open (IsLogout
// false) at a time, and closing is guarded on the open flag so a second
// close is a no-op.
type AuditEntry struct {
	ID         string // generated ULID
	SessionKey string // derived key of the access token this session belongs to

	ClientID      string
	Username      string // "" for client-only grants
	SourceAddress string

	Token []byte // snapshot of the serialized token at login time

	LoginAt  time.Time
	IsLogout bool
	LogoutAt *time.Time
	LogoutBy string // actor/reason; "" while open
}

// SessionHistory is the decoded history view served to the admin/reporting
// surface: the audit entry plus fields recovered from the token snapshot.
type SessionHistory struct {
	Username      string     `json:"username,omitempty"`
	ClientID      string     `json:"client_id"`
	SourceAddress string     `json:"ip_address"`
	TokenValue    string     `json:"access_token"`
	LoginAt       time.Time  `json:"login_at"`
	ExpiresAt     time.Time  `json:"expired_at"`
	LoggedOut     bool       `json:"logout"`
	LogoutAt      *time.Time `json:"logout_at,omitempty"`
	LogoutBy      string     `json:"logout_by,omitempty"`
}
