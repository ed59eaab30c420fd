package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/service"
	"github.com/tabeldata/oauth-sso/internal/sso/store/drivers/sqlite"

	"github.com/stretchr/testify/require"
)

const testAdminToken = "test-admin-token"

func newTestRouter(t *testing.T) (*Router, *service.TokenStore) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.DiscardHandler)
	tokenStore := &service.TokenStore{Store: st, Logger: logger}

	r := NewRouter(testAdminToken, "test", st, logger)
	r.TokenStore = tokenStore
	r.HistoryService = &service.History{Store: st, Logger: logger}
	r.ApplyRoutes()

	return r, tokenStore
}

func seedSession(t *testing.T, ts *service.TokenStore, value, username, clientID, addr string) {
	t.Helper()

	tok := domain.Token{
		Value:     value,
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		Scopes:    []string{"openid"},
	}
	auth := domain.Authentication{Username: username, ClientID: clientID, Scopes: []string{"openid"}}
	require.NoError(t, ts.StoreAccessToken(context.Background(), tok, auth, addr))
}

func doRequest(r *Router, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTokenListingEndpoint(t *testing.T) {
	r, ts := newTestRouter(t)

	seedSession(t, ts, "tok-a", "alice", "portal", "10.0.0.1")
	seedSession(t, ts, "tok-b", "bob", "portal", "10.0.0.2")

	t.Run("rejects missing credentials", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/tokens", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong credentials", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/tokens", "wrong")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists active sessions", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/tokens", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokenListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 2)
		require.EqualValues(t, 2, resp.Total)
	})

	t.Run("filters by username substring", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/tokens?username=ali", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokenListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		require.Equal(t, "alice", resp.Items[0].Username)
		require.EqualValues(t, 1, resp.Total)
	})

	t.Run("pages and sorts", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/tokens?sort=0&dir=desc&limit=1", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokenListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		require.Equal(t, "bob", resp.Items[0].Username)
		require.EqualValues(t, 2, resp.Total)
	})
}

func TestHistoryEndpoints(t *testing.T) {
	r, ts := newTestRouter(t)

	seedSession(t, ts, "tok-a", "alice", "portal", "10.0.0.1")
	seedSession(t, ts, "tok-b", "alice", "intranet", "10.0.0.1")
	seedSession(t, ts, "tok-c", "bob", "portal", "10.0.0.2")
	require.NoError(t, ts.RemoveAccessToken(context.Background(), "tok-a", "alice"))

	t.Run("by user", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/history/users/alice", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 2)
		require.EqualValues(t, 2, resp.Total)
	})

	t.Run("by user filtered on logout flag", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/history/users/alice?logout=true", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		require.True(t, resp.Items[0].LoggedOut)
		require.Equal(t, "alice", resp.Items[0].LogoutBy)
	})

	t.Run("by client", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/history/clients/portal", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 2)
	})

	t.Run("by user and client", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/history/users/alice/clients/portal", testAdminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		require.Equal(t, "tok-a", resp.Items[0].TokenValue)
	})

	t.Run("requires credentials", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/v1/history/users/alice", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodGet, "/livez", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Checks)
	require.Equal(t, "ok", resp.Checks.Database)
}
