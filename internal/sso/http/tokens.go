package http

import (
	"net/http"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/service"
	"github.com/tabeldata/oauth-sso/pkg/httpx"
	"github.com/tabeldata/oauth-sso/pkg/slogx"
)

// TokensHandler serves the active-session listing to operators.
type TokensHandler struct {
	TokenStore *service.TokenStore
}

// TokenListResponse is the paginated envelope of the active-token view.
type TokenListResponse struct {
	Items []domain.ActiveToken `json:"items"`
	Total int64                `json:"total"`
}

// HandleList handles GET /v1/tokens.
//
// Query params: username and client_id filter by substring, ip by exact
// match; sort is a column ordinal with dir=asc|desc; offset/limit page the
// result. Total counts matching rows before pagination.
func (h *TokensHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	q := domain.TokenQuery{
		Filter: domain.TokenFilter{
			Username:      r.URL.Query().Get("username"),
			ClientID:      r.URL.Query().Get("client_id"),
			SourceAddress: r.URL.Query().Get("ip"),
		},
		Sort: parseSort(r),
		Page: parsePage(r),
	}

	items, err := h.TokenStore.ListActiveTokens(ctx, q)
	if err != nil {
		log.Error("failed to list active tokens", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to list tokens",
		})
		return
	}

	total, err := h.TokenStore.CountActiveTokens(ctx, q.Filter)
	if err != nil {
		log.Error("failed to count active tokens", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to count tokens",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokenListResponse{Items: items, Total: total})
}
