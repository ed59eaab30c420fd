// Package tokenkey derives the fixed-width storage keys used to index
// bearer tokens and their authentication contexts.
//
// Keys are MD5 hex digests. That is an indexing convention carried over from
// the existing token key space, not a security mechanism: the key is only a
// lookup handle, the secret remains the original token value.
package tokenkey

import (
	"crypto/md5" //nolint:gosec // index key, not a secret
	"encoding/hex"
	"sort"
	"strings"
)

// KeyLength is the length of every derived key in hex characters.
const KeyLength = 2 * md5.Size

// Derive maps a raw token value to its 32-character lowercase hex storage
// key. It is pure and deterministic. The empty string maps to the empty
// string, which represents "no paired token" in stored records.
func Derive(value string) string {
	if value == "" {
		return ""
	}
	sum := md5.Sum([]byte(value)) //nolint:gosec // index key, not a secret
	return hex.EncodeToString(sum[:])
}

// AuthenticationKey derives the fingerprint of an authentication context:
// the (user, client, scope) triple that produced a token, independent of the
// token's literal value. Two authentications with the same username, client
// and scope set always produce the same fingerprint.
//
// Username is omitted from the canonical form for client-only grants
// (empty username), matching the stored NULL user_name on those records.
func AuthenticationKey(username, clientID string, scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("client_id=")
	b.WriteString(clientID)
	b.WriteString(";scope=")
	b.WriteString(strings.Join(sorted, " "))
	if username != "" {
		b.WriteString(";username=")
		b.WriteString(username)
	}
	return Derive(b.String())
}
