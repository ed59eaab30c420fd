package sqlite

import (
	"context"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) Insert(ctx context.Context, rec domain.RefreshTokenRecord) error {
	_, err := r.q.ExecContext(ctx,
		`insert into oauth_refresh_tokens (token_key, token, authentication) values (?, ?, ?)`,
		rec.TokenKey, rec.Token, rec.Authentication)
	return err
}

func (r *refreshTokensRepo) GetByKey(ctx context.Context, tokenKey string) (domain.RefreshTokenRecord, error) {
	var rec domain.RefreshTokenRecord
	err := r.q.QueryRowContext(ctx,
		`select token_key, token, authentication from oauth_refresh_tokens where token_key = ?`,
		tokenKey,
	).Scan(&rec.TokenKey, &rec.Token, &rec.Authentication)
	if err != nil {
		return domain.RefreshTokenRecord{}, mapNotFound(err)
	}
	return rec, nil
}

func (r *refreshTokensRepo) DeleteByKey(ctx context.Context, tokenKey string) error {
	_, err := r.q.ExecContext(ctx,
		`delete from oauth_refresh_tokens where token_key = ?`, tokenKey)
	return err
}

func (r *refreshTokensRepo) All(ctx context.Context) ([]domain.RefreshTokenRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`select token_key, token, authentication from oauth_refresh_tokens`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.RefreshTokenRecord
	for rows.Next() {
		var rec domain.RefreshTokenRecord
		if err := rows.Scan(&rec.TokenKey, &rec.Token, &rec.Authentication); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
