package sqlite

import (
	"context"
	"database/sql"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
)

type auditRepo struct {
	q querier
}

const auditColumns = `id, session_key, client_id, token, ip_address, user_name, login_at, is_logout, logout_at, logout_by`

func (r *auditRepo) Open(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.q.ExecContext(ctx,
		`insert into oauth_token_history
		(id, session_key, client_id, token, ip_address, user_name, login_at, is_logout, logout_at, logout_by)
		values (?, ?, ?, ?, ?, ?, ?, 0, null, null)`,
		e.ID,
		e.SessionKey,
		e.ClientID,
		e.Token,
		e.SourceAddress,
		mapStringNull(e.Username),
		e.LoginAt,
	)
	return err
}

// Close stamps the open entry as logged out. The is_logout filter makes a
// second close a no-op and protects logout_at/logout_by from overwrites.
func (r *auditRepo) Close(ctx context.Context, sessionKey, actor string) error {
	_, err := r.q.ExecContext(ctx,
		`update oauth_token_history
		set is_logout = 1, logout_at = ?, logout_by = ?
		where session_key = ? and is_logout = 0`,
		nowUTC(), actor, sessionKey)
	return err
}

func (r *auditRepo) GetBySessionKey(ctx context.Context, sessionKey string) (domain.AuditEntry, error) {
	row := r.q.QueryRowContext(ctx,
		`select `+auditColumns+` from oauth_token_history where session_key = ? order by login_at desc limit 1`,
		sessionKey)
	return scanAuditEntry(row)
}

func (r *auditRepo) ListByUser(ctx context.Context, username string, q domain.HistoryQuery) ([]domain.AuditEntry, error) {
	b := r.historyBase()
	b.andEq("user_name", username)
	b.andLike("client_id", q.Filter.ClientID)
	applyHistoryFilter(b, q.Filter)
	b.orderBy(historySortColumns, q.Sort)
	b.page(q.Page)
	return r.list(ctx, b)
}

func (r *auditRepo) CountByUser(ctx context.Context, username string, f domain.HistoryFilter) (int64, error) {
	b := r.countBase()
	b.andEq("user_name", username)
	b.andLike("client_id", f.ClientID)
	applyHistoryFilter(b, f)
	return r.count(ctx, b)
}

func (r *auditRepo) ListByClient(ctx context.Context, clientID string, q domain.HistoryQuery) ([]domain.AuditEntry, error) {
	b := r.historyBase()
	b.andEq("client_id", clientID)
	b.andLike("user_name", q.Filter.Username)
	applyHistoryFilter(b, q.Filter)
	b.orderBy(historySortColumns, q.Sort)
	b.page(q.Page)
	return r.list(ctx, b)
}

func (r *auditRepo) CountByClient(ctx context.Context, clientID string, f domain.HistoryFilter) (int64, error) {
	b := r.countBase()
	b.andEq("client_id", clientID)
	b.andLike("user_name", f.Username)
	applyHistoryFilter(b, f)
	return r.count(ctx, b)
}

func (r *auditRepo) ListByUserAndClient(ctx context.Context, username, clientID string, q domain.HistoryQuery) ([]domain.AuditEntry, error) {
	b := r.historyBase()
	b.andEq("client_id", clientID)
	b.andEq("user_name", username)
	applyHistoryFilter(b, q.Filter)
	b.orderBy(historySortColumns, q.Sort)
	b.page(q.Page)
	return r.list(ctx, b)
}

func (r *auditRepo) CountByUserAndClient(ctx context.Context, username, clientID string, f domain.HistoryFilter) (int64, error) {
	b := r.countBase()
	b.andEq("client_id", clientID)
	b.andEq("user_name", username)
	applyHistoryFilter(b, f)
	return r.count(ctx, b)
}

func (r *auditRepo) historyBase() *queryBuilder {
	return newQueryBuilder(`select ` + auditColumns + ` from oauth_token_history where 1 = 1`)
}

func (r *auditRepo) countBase() *queryBuilder {
	return newQueryBuilder(`select count(*) from oauth_token_history where 1 = 1`)
}

// applyHistoryFilter adds the predicates shared by every history view:
// exact match on the logout flag, substring match on the source address.
func applyHistoryFilter(b *queryBuilder, f domain.HistoryFilter) {
	if f.LoggedOut != nil {
		b.andEq("is_logout", boolToInt(*f.LoggedOut))
	}
	b.andLike("ip_address", f.SourceAddress)
}

func (r *auditRepo) list(ctx context.Context, b *queryBuilder) ([]domain.AuditEntry, error) {
	query, args := b.query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *auditRepo) count(ctx context.Context, b *queryBuilder) (int64, error) {
	query, args := b.query()
	var count int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanAuditEntry(row rowScanner) (domain.AuditEntry, error) {
	var (
		e        domain.AuditEntry
		username sql.NullString
		logoutAt sql.NullTime
		logoutBy sql.NullString
	)
	err := row.Scan(
		&e.ID,
		&e.SessionKey,
		&e.ClientID,
		&e.Token,
		&e.SourceAddress,
		&username,
		&e.LoginAt,
		&e.IsLogout,
		&logoutAt,
		&logoutBy,
	)
	if err != nil {
		return domain.AuditEntry{}, mapNotFound(err)
	}

	e.Username = mapNullString(username)
	e.LogoutAt = mapNullTimePtr(logoutAt)
	e.LogoutBy = mapNullString(logoutBy)
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
