package store

import (
	"context"
	"errors"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and the durable store is the single source of truth:
// no caching layer sits in front of it, every read is a storage round trip.
type Store interface {
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	Audit() Audit

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., the
	// token-insert + audit-open pair). The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type AccessTokens interface {
	// Insert writes a new access-token record.
	Insert(ctx context.Context, rec domain.AccessTokenRecord) error

	// GetByKey returns the record stored under a derived token key.
	GetByKey(ctx context.Context, tokenKey string) (domain.AccessTokenRecord, error)

	// GetByAuthKey returns the record for an authentication fingerprint.
	// This is the authentication index: auth_key is unique, so at most one
	// record exists per fingerprint.
	GetByAuthKey(ctx context.Context, authKey string) (domain.AccessTokenRecord, error)

	// DeleteByKey removes a record. Deleting an absent key is a no-op.
	DeleteByKey(ctx context.Context, tokenKey string) error

	// DeleteByRefreshKey removes every record whose paired refresh key
	// matches (cascade on refresh-token revocation).
	DeleteByRefreshKey(ctx context.Context, refreshKey string) error

	// ListByUser / ListByClient / ListByUserAndClient are the secondary
	// index scans used by the bulk find operations.
	ListByUser(ctx context.Context, username string) ([]domain.AccessTokenRecord, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.AccessTokenRecord, error)
	ListByUserAndClient(ctx context.Context, username, clientID string) ([]domain.AccessTokenRecord, error)

	// List runs the filtered, sorted, paginated listing view.
	List(ctx context.Context, q domain.TokenQuery) ([]domain.AccessTokenRecord, error)

	// Count returns the total row count matching the listing filters,
	// ignoring sort and pagination.
	Count(ctx context.Context, f domain.TokenFilter) (int64, error)

	// All returns every record. Used by the corruption sweep.
	All(ctx context.Context) ([]domain.AccessTokenRecord, error)
}

type RefreshTokens interface {
	Insert(ctx context.Context, rec domain.RefreshTokenRecord) error
	GetByKey(ctx context.Context, tokenKey string) (domain.RefreshTokenRecord, error)
	DeleteByKey(ctx context.Context, tokenKey string) error

	// All returns every record. Used by the corruption sweep.
	All(ctx context.Context) ([]domain.RefreshTokenRecord, error)
}

type Audit interface {
	// Open inserts a new open session entry. Only called inside the same
	// transaction that inserts the access-token record.
	Open(ctx context.Context, e domain.AuditEntry) error

	// Close stamps the open entry for sessionKey as logged out by actor.
	// The update filters on the open flag, so closing an already-closed
	// session (or an unknown key) is a no-op.
	Close(ctx context.Context, sessionKey, actor string) error

	// GetBySessionKey returns the most recent entry for a session key.
	GetBySessionKey(ctx context.Context, sessionKey string) (domain.AuditEntry, error)

	// History views: each fixes one or two identity columns and applies the
	// remaining filters, sort ordinal and page window of q.
	ListByUser(ctx context.Context, username string, q domain.HistoryQuery) ([]domain.AuditEntry, error)
	CountByUser(ctx context.Context, username string, f domain.HistoryFilter) (int64, error)

	ListByClient(ctx context.Context, clientID string, q domain.HistoryQuery) ([]domain.AuditEntry, error)
	CountByClient(ctx context.Context, clientID string, f domain.HistoryFilter) (int64, error)

	ListByUserAndClient(ctx context.Context, username, clientID string, q domain.HistoryQuery) ([]domain.AuditEntry, error)
	CountByUserAndClient(ctx context.Context, username, clientID string, f domain.HistoryFilter) (int64, error)
}
