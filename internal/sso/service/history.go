package service

import (
	"context"
	"log/slog"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/store"
)

// History serves the session history views to the admin/reporting surface.
// It reads the audit table only; the token columns it decodes are snapshots
// taken at login time, so a row stays readable after the live token is gone.
type History struct {
	Store  store.Store
	Logger *slog.Logger
}

// ByUser returns the session history of a user, filtered, sorted and
// paginated per q.
func (h *History) ByUser(ctx context.Context, username string, q domain.HistoryQuery) ([]domain.SessionHistory, error) {
	entries, err := h.Store.Audit().ListByUser(ctx, username, q)
	if err != nil {
		return nil, err
	}
	return h.decode(ctx, entries), nil
}

// CountByUser returns the total history rows for a user matching f.
func (h *History) CountByUser(ctx context.Context, username string, f domain.HistoryFilter) (int64, error) {
	return h.Store.Audit().CountByUser(ctx, username, f)
}

// ByClient returns the session history of a client, filtered, sorted and
// paginated per q.
func (h *History) ByClient(ctx context.Context, clientID string, q domain.HistoryQuery) ([]domain.SessionHistory, error) {
	entries, err := h.Store.Audit().ListByClient(ctx, clientID, q)
	if err != nil {
		return nil, err
	}
	return h.decode(ctx, entries), nil
}

// CountByClient returns the total history rows for a client matching f.
func (h *History) CountByClient(ctx context.Context, clientID string, f domain.HistoryFilter) (int64, error) {
	return h.Store.Audit().CountByClient(ctx, clientID, f)
}

// ByUserAndClient returns the session history of a user-client pair.
func (h *History) ByUserAndClient(ctx context.Context, username, clientID string, q domain.HistoryQuery) ([]domain.SessionHistory, error) {
	entries, err := h.Store.Audit().ListByUserAndClient(ctx, username, clientID, q)
	if err != nil {
		return nil, err
	}
	return h.decode(ctx, entries), nil
}

// CountByUserAndClient returns the total history rows for a user-client
// pair matching f.
func (h *History) CountByUserAndClient(ctx context.Context, username, clientID string, f domain.HistoryFilter) (int64, error) {
	return h.Store.Audit().CountByUserAndClient(ctx, username, clientID, f)
}

// decode turns audit entries into the served view. An entry whose token
// snapshot no longer decodes is dropped from the page and the live token
// record it points at is purged; the history row itself is never deleted.
func (h *History) decode(ctx context.Context, entries []domain.AuditEntry) []domain.SessionHistory {
	var corrupt []string
	out := make([]domain.SessionHistory, 0, len(entries))
	for _, e := range entries {
		tok, err := domain.DecodeToken(e.Token)
		if err != nil {
			corrupt = append(corrupt, e.SessionKey)
			continue
		}
		out = append(out, domain.SessionHistory{
			Username:      e.Username,
			ClientID:      e.ClientID,
			SourceAddress: e.SourceAddress,
			TokenValue:    tok.Value,
			LoginAt:       e.LoginAt,
			ExpiresAt:     tok.ExpiresAt,
			LoggedOut:     e.IsLogout,
			LogoutAt:      e.LogoutAt,
			LogoutBy:      e.LogoutBy,
		})
	}
	purgeAccessTokens(ctx, h.Store, h.Logger, corrupt...)
	return out
}
