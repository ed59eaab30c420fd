package domain

import "time"

// AccessTokenRecord is one row of the access-token table: the derived key,
// the opaque serialized payloads, and the denormalized fields the secondary
// indexes are built on.
//
// Invariant: at most one record exists per AuthKey at any time. Storing a
// fresh token for the same authentication fingerprint replaces the old row.
type AccessTokenRecord struct {
	TokenKey string // derived key of the raw token value, primary identity
	AuthKey  string // authentication fingerprint; "" only for legacy rows

	Username      string // "" for client-only grants (stored as NULL)
	ClientID      string
	SourceAddress string

	Token          []byte // serialized Token
	Authentication []byte // serialized Authentication
	RefreshKey     string // derived key of the paired refresh token, "" if none

	LoginAt time.Time
}

// RefreshTokenRecord is one row of the refresh-token table. Refresh tokens
// carry no fingerprint uniqueness and no audit coupling.
type RefreshTokenRecord struct {
	TokenKey       string
	Token          []byte
	Authentication []byte
}

// ActiveToken is the decoded listing view over the access-token table,
// served to the admin/reporting surface.
type ActiveToken struct {
	Username      string    `json:"username,omitempty"`
	ClientID      string    `json:"client_id"`
	SourceAddress string    `json:"ip_address"`
	TokenValue    string    `json:"access_token"`
	LoginAt       time.Time `json:"login_at"`
	ExpiresAt     time.Time `json:"expired_at"`
}
