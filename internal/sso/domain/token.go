package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tabeldata/oauth-sso/pkg/tokenkey"
)

// ErrCorruptPayload reports a stored blob that can no longer be decoded.
// Callers of the service layer never see this error: the offending record is
// purged and the read behaves as if the record were absent.
var ErrCorruptPayload = errors.New("domain: corrupt payload")

// Token is the decoded form of a stored bearer token blob. The blob is
// opaque to the store; only its round-trip through EncodeToken/DecodeToken
// is contractual.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	Scopes    []string  `json:"scopes,omitempty"`

	// RefreshToken is the raw value of the paired refresh token, if any.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Key returns the derived storage key for the token value.
func (t Token) Key() string { return tokenkey.Derive(t.Value) }

// RefreshKey returns the derived key of the paired refresh token, or ""
// when the token has no refresh pairing.
func (t Token) RefreshKey() string { return tokenkey.Derive(t.RefreshToken) }

// Authentication is the decoded authentication context an issued token is
// tied to. Username is empty for client-only grants.
type Authentication struct {
	Username string   `json:"username,omitempty"`
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes,omitempty"`
}

// ClientOnly reports whether the authentication has no end user behind it.
func (a Authentication) ClientOnly() bool { return a.Username == "" }

// Fingerprint derives the key identifying this authentication context,
// independent of any token's literal value.
func (a Authentication) Fingerprint() string {
	return tokenkey.AuthenticationKey(a.Username, a.ClientID, a.Scopes)
}

// EncodeToken serializes a token for storage.
func EncodeToken(t Token) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeToken deserializes a stored token blob. Any blob that does not
// round-trip to a token with a non-empty value is corrupt.
func DecodeToken(b []byte) (Token, error) {
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, ErrCorruptPayload
	}
	if t.Value == "" {
		return Token{}, ErrCorruptPayload
	}
	return t, nil
}

// EncodeAuthentication serializes an authentication context for storage.
func EncodeAuthentication(a Authentication) ([]byte, error) {
	return json.Marshal(a)
}

// DecodeAuthentication deserializes a stored authentication blob. A blob
// without a client id cannot be attributed and is corrupt.
func DecodeAuthentication(b []byte) (Authentication, error) {
	var a Authentication
	if err := json.Unmarshal(b, &a); err != nil {
		return Authentication{}, ErrCorruptPayload
	}
	if a.ClientID == "" {
		return Authentication{}, ErrCorruptPayload
	}
	return a, nil
}
