package sqlite

import (
	"context"
	"database/sql"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
)

type accessTokensRepo struct {
	q querier
}

const accessTokenColumns = `token_key, token, auth_key, user_name, client_id, authentication, refresh_key, ip_address, login_at`

const insertAccessTokenSQL = `insert into oauth_access_tokens
	(token_key, token, auth_key, user_name, client_id, authentication, refresh_key, ip_address, login_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (r *accessTokensRepo) Insert(ctx context.Context, rec domain.AccessTokenRecord) error {
	_, err := r.q.ExecContext(ctx, insertAccessTokenSQL,
		rec.TokenKey,
		rec.Token,
		mapStringNull(rec.AuthKey),
		mapStringNull(rec.Username),
		rec.ClientID,
		rec.Authentication,
		mapStringNull(rec.RefreshKey),
		rec.SourceAddress,
		rec.LoginAt,
	)
	return err
}

func (r *accessTokensRepo) GetByKey(ctx context.Context, tokenKey string) (domain.AccessTokenRecord, error) {
	row := r.q.QueryRowContext(ctx,
		`select `+accessTokenColumns+` from oauth_access_tokens where token_key = ?`,
		tokenKey,
	)
	return scanAccessToken(row)
}

func (r *accessTokensRepo) GetByAuthKey(ctx context.Context, authKey string) (domain.AccessTokenRecord, error) {
	row := r.q.QueryRowContext(ctx,
		`select `+accessTokenColumns+` from oauth_access_tokens where auth_key = ?`,
		authKey,
	)
	return scanAccessToken(row)
}

func (r *accessTokensRepo) DeleteByKey(ctx context.Context, tokenKey string) error {
	_, err := r.q.ExecContext(ctx,
		`delete from oauth_access_tokens where token_key = ?`, tokenKey)
	return err
}

func (r *accessTokensRepo) DeleteByRefreshKey(ctx context.Context, refreshKey string) error {
	_, err := r.q.ExecContext(ctx,
		`delete from oauth_access_tokens where refresh_key = ?`, refreshKey)
	return err
}

func (r *accessTokensRepo) ListByUser(ctx context.Context, username string) ([]domain.AccessTokenRecord, error) {
	return r.list(ctx,
		`select `+accessTokenColumns+` from oauth_access_tokens where user_name = ?`,
		username)
}

func (r *accessTokensRepo) ListByClient(ctx context.Context, clientID string) ([]domain.AccessTokenRecord, error) {
	return r.list(ctx,
		`select `+accessTokenColumns+` from oauth_access_tokens where client_id = ?`,
		clientID)
}

func (r *accessTokensRepo) ListByUserAndClient(ctx context.Context, username, clientID string) ([]domain.AccessTokenRecord, error) {
	return r.list(ctx,
		`select `+accessTokenColumns+` from oauth_access_tokens where user_name = ? and client_id = ?`,
		username, clientID)
}

func (r *accessTokensRepo) All(ctx context.Context) ([]domain.AccessTokenRecord, error) {
	return r.list(ctx, `select `+accessTokenColumns+` from oauth_access_tokens`)
}

// List runs the active-token listing view with dynamic filters, sort and
// page window.
func (r *accessTokensRepo) List(ctx context.Context, q domain.TokenQuery) ([]domain.AccessTokenRecord, error) {
	b := newQueryBuilder(`select ` + accessTokenColumns + ` from oauth_access_tokens where 1 = 1`)
	applyTokenFilter(b, q.Filter)
	b.orderBy(tokenSortColumns, q.Sort)
	b.page(q.Page)

	query, args := b.query()
	return r.list(ctx, query, args...)
}

func (r *accessTokensRepo) Count(ctx context.Context, f domain.TokenFilter) (int64, error) {
	b := newQueryBuilder(`select count(*) from oauth_access_tokens where 1 = 1`)
	applyTokenFilter(b, f)

	query, args := b.query()
	var count int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// applyTokenFilter adds the token view's optional predicates: substring
// match on user and client, exact match on source address.
func applyTokenFilter(b *queryBuilder, f domain.TokenFilter) {
	b.andLike("client_id", f.ClientID)
	b.andLike("user_name", f.Username)
	b.andEq("ip_address", f.SourceAddress)
}

func (r *accessTokensRepo) list(ctx context.Context, query string, args ...any) ([]domain.AccessTokenRecord, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.AccessTokenRecord
	for rows.Next() {
		rec, err := scanAccessToken(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// rowScanner lets scanAccessToken work for both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessToken(row rowScanner) (domain.AccessTokenRecord, error) {
	var (
		rec        domain.AccessTokenRecord
		authKey    sql.NullString
		username   sql.NullString
		refreshKey sql.NullString
	)
	err := row.Scan(
		&rec.TokenKey,
		&rec.Token,
		&authKey,
		&username,
		&rec.ClientID,
		&rec.Authentication,
		&refreshKey,
		&rec.SourceAddress,
		&rec.LoginAt,
	)
	if err != nil {
		return domain.AccessTokenRecord{}, mapNotFound(err)
	}

	rec.AuthKey = mapNullString(authKey)
	rec.Username = mapNullString(username)
	rec.RefreshKey = mapNullString(refreshKey)
	return rec, nil
}
