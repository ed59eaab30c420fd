package http

import (
	"context"
	"net/http"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/service"
	"github.com/tabeldata/oauth-sso/pkg/httpx"
	"github.com/tabeldata/oauth-sso/pkg/slogx"
)

// HistoryHandler serves the session history views to operators.
type HistoryHandler struct {
	HistoryService *service.History
}

// HistoryListResponse is the paginated envelope of the history views.
type HistoryListResponse struct {
	Items []domain.SessionHistory `json:"items"`
	Total int64                   `json:"total"`
}

// HandleByUser handles GET /v1/history/users/{username}.
//
// Query params: client_id and ip filter by substring, logout=true|false by
// exact flag; sort is a column ordinal with dir=asc|desc; offset/limit page
// the result.
func (h *HistoryHandler) HandleByUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	q := historyQuery(r)

	h.respond(w, r,
		func(ctx context.Context) ([]domain.SessionHistory, error) {
			return h.HistoryService.ByUser(ctx, username, q)
		},
		func(ctx context.Context) (int64, error) {
			return h.HistoryService.CountByUser(ctx, username, q.Filter)
		},
	)
}

// HandleByClient handles GET /v1/history/clients/{client_id}.
func (h *HistoryHandler) HandleByClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	q := historyQuery(r)

	h.respond(w, r,
		func(ctx context.Context) ([]domain.SessionHistory, error) {
			return h.HistoryService.ByClient(ctx, clientID, q)
		},
		func(ctx context.Context) (int64, error) {
			return h.HistoryService.CountByClient(ctx, clientID, q.Filter)
		},
	)
}

// HandleByUserAndClient handles GET /v1/history/users/{username}/clients/{client_id}.
func (h *HistoryHandler) HandleByUserAndClient(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	clientID := r.PathValue("client_id")
	q := historyQuery(r)

	h.respond(w, r,
		func(ctx context.Context) ([]domain.SessionHistory, error) {
			return h.HistoryService.ByUserAndClient(ctx, username, clientID, q)
		},
		func(ctx context.Context) (int64, error) {
			return h.HistoryService.CountByUserAndClient(ctx, username, clientID, q.Filter)
		},
	)
}

func historyQuery(r *http.Request) domain.HistoryQuery {
	return domain.HistoryQuery{
		Filter: domain.HistoryFilter{
			Username:      r.URL.Query().Get("username"),
			ClientID:      r.URL.Query().Get("client_id"),
			SourceAddress: r.URL.Query().Get("ip"),
			LoggedOut:     parseLogout(r),
		},
		Sort: parseSort(r),
		Page: parsePage(r),
	}
}

func (h *HistoryHandler) respond(
	w http.ResponseWriter, r *http.Request,
	list func(context.Context) ([]domain.SessionHistory, error),
	count func(context.Context) (int64, error),
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	items, err := list(ctx)
	if err != nil {
		log.Error("failed to list session history", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to list session history",
		})
		return
	}

	total, err := count(ctx)
	if err != nil {
		log.Error("failed to count session history", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to count session history",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, HistoryListResponse{Items: items, Total: total})
}
