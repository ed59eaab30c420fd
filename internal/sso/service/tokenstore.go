package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/store"
	"github.com/tabeldata/oauth-sso/pkg/idx"
	"github.com/tabeldata/oauth-sso/pkg/tokenkey"
)

var (
	ErrInvalidToken          = errors.New("invalid_token")
	ErrInvalidAuthentication = errors.New("invalid_authentication")
	ErrMissingActor          = errors.New("missing_audit_actor")
)

// ActorTimeout is the audit actor stamped when a session ends without an
// explicit logout: idempotent re-store and fingerprint replacement.
const ActorTimeout = "timeout"

// TokenStore persists issued bearer tokens and keeps the session audit trail
// in step with them. It sits behind the issuance authority: tokens arrive
// here already minted, and this layer never signs, verifies or inspects
// their cryptographic content.
//
// Absence is not an error anywhere on this surface: reads return nil for
// unknown tokens, removes of unknown tokens are no-ops. Stored blobs that no
// longer decode are treated as dead data and purged rather than surfaced.
type TokenStore struct {
	Store  store.Store
	Logger *slog.Logger
}

// StoreAccessToken writes a token record and opens its audit entry in one
// transaction. A record already stored under the same raw value or the same
// authentication fingerprint is replaced, and the replaced session is closed
// as timed out.
//
// Concurrent stores for the same fingerprint race read-delete-insert; the
// last writer wins. Callers needing strict ordering must serialize issuance
// per fingerprint upstream.
func (s *TokenStore) StoreAccessToken(ctx context.Context, token domain.Token, auth domain.Authentication, sourceAddr string) error {
	if token.Value == "" {
		return ErrInvalidToken
	}
	if auth.ClientID == "" {
		return ErrInvalidAuthentication
	}

	tokenBlob, err := domain.EncodeToken(token)
	if err != nil {
		return err
	}
	authBlob, err := domain.EncodeAuthentication(auth)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rec := domain.AccessTokenRecord{
		TokenKey:       token.Key(),
		AuthKey:        auth.Fingerprint(),
		Username:       auth.Username,
		ClientID:       auth.ClientID,
		SourceAddress:  sourceAddr,
		Token:          tokenBlob,
		Authentication: authBlob,
		RefreshKey:     token.RefreshKey(),
		LoginAt:        now,
	}
	entry := domain.AuditEntry{
		ID:            idx.New().String(),
		SessionKey:    rec.TokenKey,
		ClientID:      auth.ClientID,
		Username:      auth.Username,
		SourceAddress: sourceAddr,
		Token:         tokenBlob,
		LoginAt:       now,
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := replaceStale(ctx, tx, rec.TokenKey, rec.AuthKey); err != nil {
			return err
		}
		if err := tx.AccessTokens().Insert(ctx, rec); err != nil {
			return err
		}
		return tx.Audit().Open(ctx, entry)
	})
}

// replaceStale removes any record stored under the same token key or the
// same authentication fingerprint, closing the replaced sessions as timed
// out. Keeps the one-record-per-fingerprint invariant ahead of the insert.
func replaceStale(ctx context.Context, tx store.Tx, tokenKey, authKey string) error {
	stale := make(map[string]struct{}, 2)

	if rec, err := tx.AccessTokens().GetByKey(ctx, tokenKey); err == nil {
		stale[rec.TokenKey] = struct{}{}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if rec, err := tx.AccessTokens().GetByAuthKey(ctx, authKey); err == nil {
		stale[rec.TokenKey] = struct{}{}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	for key := range stale {
		if err := tx.AccessTokens().DeleteByKey(ctx, key); err != nil {
			return err
		}
		if err := tx.Audit().Close(ctx, key, ActorTimeout); err != nil {
			return err
		}
	}
	return nil
}

// ReadAccessToken returns the stored token for a raw token value, or nil if
// no record exists. A record whose payload no longer decodes is purged and
// reads as absent.
func (s *TokenStore) ReadAccessToken(ctx context.Context, rawValue string) (*domain.Token, error) {
	rec, err := s.Store.AccessTokens().GetByKey(ctx, tokenkey.Derive(rawValue))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tok, err := domain.DecodeToken(rec.Token)
	if errors.Is(err, domain.ErrCorruptPayload) {
		purgeAccessTokens(ctx, s.Store, s.Logger, rec.TokenKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ReadAuthentication returns the authentication context an access token was
// issued under, or nil if the token is unknown.
func (s *TokenStore) ReadAuthentication(ctx context.Context, rawValue string) (*domain.Authentication, error) {
	rec, err := s.Store.AccessTokens().GetByKey(ctx, tokenkey.Derive(rawValue))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	auth, err := domain.DecodeAuthentication(rec.Authentication)
	if errors.Is(err, domain.ErrCorruptPayload) {
		purgeAccessTokens(ctx, s.Store, s.Logger, rec.TokenKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// ReadAccessTokenByAuthentication resolves the currently valid access token
// for an authentication context via its fingerprint.
//
// If the stored record's authentication no longer hashes to the fingerprint
// it sits under (the context has changed shape since issuance), the stale
// record is removed and the token is re-stored under the fresh fingerprint.
func (s *TokenStore) ReadAccessTokenByAuthentication(ctx context.Context, auth domain.Authentication, sourceAddr string) (*domain.Token, error) {
	key := auth.Fingerprint()

	rec, err := s.Store.AccessTokens().GetByAuthKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tok, err := domain.DecodeToken(rec.Token)
	if errors.Is(err, domain.ErrCorruptPayload) {
		purgeAccessTokens(ctx, s.Store, s.Logger, rec.TokenKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	storedAuth, err := domain.DecodeAuthentication(rec.Authentication)
	if errors.Is(err, domain.ErrCorruptPayload) {
		purgeAccessTokens(ctx, s.Store, s.Logger, rec.TokenKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if storedAuth.Fingerprint() != key {
		s.Logger.Info("authentication fingerprint drift, re-storing token", "auth_key", key)
		if err := s.RemoveAccessToken(ctx, tok.Value, ActorTimeout); err != nil {
			return nil, err
		}
		if err := s.StoreAccessToken(ctx, tok, auth, sourceAddr); err != nil {
			return nil, err
		}
	}

	return &tok, nil
}

// RemoveAccessToken deletes a token record and closes its audit entry with
// the given actor, atomically. Removing an unknown token is a no-op on both
// stores. An empty actor cannot be attributed and is rejected.
func (s *TokenStore) RemoveAccessToken(ctx context.Context, rawValue, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return ErrMissingActor
	}

	key := tokenkey.Derive(rawValue)
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AccessTokens().DeleteByKey(ctx, key); err != nil {
			return err
		}
		return tx.Audit().Close(ctx, key, actor)
	})
}

// RemoveAccessTokensByRefreshToken removes every access token paired with
// the given refresh token. History rows are not closed here: cascading
// revocation leaves session close-out to explicit logout.
func (s *TokenStore) RemoveAccessTokensByRefreshToken(ctx context.Context, rawRefresh string) error {
	return s.Store.AccessTokens().DeleteByRefreshKey(ctx, tokenkey.Derive(rawRefresh))
}

// StoreRefreshToken writes a refresh token record. Refresh tokens carry no
// fingerprint uniqueness and no audit coupling.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, token domain.Token, auth domain.Authentication) error {
	if token.Value == "" {
		return ErrInvalidToken
	}
	if auth.ClientID == "" {
		return ErrInvalidAuthentication
	}

	tokenBlob, err := domain.EncodeToken(token)
	if err != nil {
		return err
	}
	authBlob, err := domain.EncodeAuthentication(auth)
	if err != nil {
		return err
	}

	return s.Store.RefreshTokens().Insert(ctx, domain.RefreshTokenRecord{
		TokenKey:       token.Key(),
		Token:          tokenBlob,
		Authentication: authBlob,
	})
}

// ReadRefreshToken returns the stored refresh token for a raw value, or nil
// if no record exists.
func (s *TokenStore) ReadRefreshToken(ctx context.Context, rawValue string) (*domain.Token, error) {
	rec, err := s.Store.RefreshTokens().GetByKey(ctx, tokenkey.Derive(rawValue))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tok, err := domain.DecodeToken(rec.Token)
	if errors.Is(err, domain.ErrCorruptPayload) {
		purgeRefreshTokens(ctx, s.Store, s.Logger, rec.TokenKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ReadRefreshAuthentication returns the authentication context a refresh
// token was issued under, or nil if the token is unknown.
func (s *TokenStore) ReadRefreshAuthentication(ctx context.Context, rawValue string) (*domain.Authentication, error) {
	rec, err := s.Store.RefreshTokens().GetByKey(ctx, tokenkey.Derive(rawValue))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	auth, err := domain.DecodeAuthentication(rec.Authentication)
	if errors.Is(err, domain.ErrCorruptPayload) {
		purgeRefreshTokens(ctx, s.Store, s.Logger, rec.TokenKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// RemoveRefreshToken deletes a refresh token record. Unknown tokens are a
// no-op.
func (s *TokenStore) RemoveRefreshToken(ctx context.Context, rawValue string) error {
	return s.Store.RefreshTokens().DeleteByKey(ctx, tokenkey.Derive(rawValue))
}

// FindByClient returns every decodable access token issued to a client.
func (s *TokenStore) FindByClient(ctx context.Context, clientID string) ([]domain.Token, error) {
	recs, err := s.Store.AccessTokens().ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.decodeTokens(ctx, recs), nil
}

// FindByUser returns every decodable access token issued to a user.
func (s *TokenStore) FindByUser(ctx context.Context, username string) ([]domain.Token, error) {
	recs, err := s.Store.AccessTokens().ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.decodeTokens(ctx, recs), nil
}

// FindByUserAndClient returns every decodable access token issued to a
// user-client pair.
func (s *TokenStore) FindByUserAndClient(ctx context.Context, username, clientID string) ([]domain.Token, error) {
	recs, err := s.Store.AccessTokens().ListByUserAndClient(ctx, username, clientID)
	if err != nil {
		return nil, err
	}
	return s.decodeTokens(ctx, recs), nil
}

// ListActiveTokens runs the filtered, sorted, paginated listing over active
// tokens. Corrupt rows shrink the returned page below the requested limit;
// they are purged once the scan is complete.
func (s *TokenStore) ListActiveTokens(ctx context.Context, q domain.TokenQuery) ([]domain.ActiveToken, error) {
	recs, err := s.Store.AccessTokens().List(ctx, q)
	if err != nil {
		return nil, err
	}

	var corrupt []string
	out := make([]domain.ActiveToken, 0, len(recs))
	for _, rec := range recs {
		tok, err := domain.DecodeToken(rec.Token)
		if err != nil {
			corrupt = append(corrupt, rec.TokenKey)
			continue
		}
		out = append(out, domain.ActiveToken{
			Username:      rec.Username,
			ClientID:      rec.ClientID,
			SourceAddress: rec.SourceAddress,
			TokenValue:    tok.Value,
			LoginAt:       rec.LoginAt,
			ExpiresAt:     tok.ExpiresAt,
		})
	}
	purgeAccessTokens(ctx, s.Store, s.Logger, corrupt...)
	return out, nil
}

// CountActiveTokens returns the total row count matching the listing
// filters, before any corruption-driven row drops.
func (s *TokenStore) CountActiveTokens(ctx context.Context, f domain.TokenFilter) (int64, error) {
	return s.Store.AccessTokens().Count(ctx, f)
}

// decodeTokens decodes scanned records in two phases: decode everything
// first, then purge the subset that failed, so the purge never mutates the
// table mid-scan.
func (s *TokenStore) decodeTokens(ctx context.Context, recs []domain.AccessTokenRecord) []domain.Token {
	var corrupt []string
	tokens := make([]domain.Token, 0, len(recs))
	for _, rec := range recs {
		tok, err := domain.DecodeToken(rec.Token)
		if err != nil {
			corrupt = append(corrupt, rec.TokenKey)
			continue
		}
		tokens = append(tokens, tok)
	}
	purgeAccessTokens(ctx, s.Store, s.Logger, corrupt...)
	return tokens
}

// purgeAccessTokens best-effort deletes records whose payloads failed to
// decode. A token that cannot be decoded can never be validated again, so
// keeping the row only costs space and repeated decode failures. The audit
// entry is NOT closed: corruption is not a logout.
func purgeAccessTokens(ctx context.Context, st store.Store, logger *slog.Logger, keys ...string) {
	for _, key := range keys {
		if err := st.AccessTokens().DeleteByKey(ctx, key); err != nil {
			logger.Error("failed to purge corrupt access token", "token_key", key, "error", err)
			continue
		}
		logger.Warn("purged corrupt access token", "token_key", key)
	}
}

func purgeRefreshTokens(ctx context.Context, st store.Store, logger *slog.Logger, keys ...string) {
	for _, key := range keys {
		if err := st.RefreshTokens().DeleteByKey(ctx, key); err != nil {
			logger.Error("failed to purge corrupt refresh token", "token_key", key, "error", err)
			continue
		}
		logger.Warn("purged corrupt refresh token", "token_key", key)
	}
}
