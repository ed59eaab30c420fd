package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/store"

	"github.com/stretchr/testify/require"
)

func newHistoryService(t *testing.T) (*History, *TokenStore, store.Store) {
	t.Helper()

	ts, st := newTokenStore(t)
	return &History{Store: st, Logger: slog.New(slog.DiscardHandler)}, ts, st
}

func TestHistoryByUser(t *testing.T) {
	ctx := context.Background()
	h, ts, _ := newHistoryService(t)

	// Two sessions for alice, one closed; one unrelated session for bob.
	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-a"), testAuth("alice", "portal"), "10.0.0.1"))
	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-b"), testAuth("alice", "intranet"), "10.0.0.2"))
	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-c"), testAuth("bob", "portal"), "10.0.0.3"))
	require.NoError(t, ts.RemoveAccessToken(ctx, "tok-a", "alice"))

	t.Run("returns only the user's sessions", func(t *testing.T) {
		items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{Page: domain.Page{Limit: 10}})
		require.NoError(t, err)
		require.Len(t, items, 2)
		for _, item := range items {
			require.Equal(t, "alice", item.Username)
		}
	})

	t.Run("closed sessions carry their closeout", func(t *testing.T) {
		logout := true
		items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{
			Filter: domain.HistoryFilter{LoggedOut: &logout},
			Page:   domain.Page{Limit: 10},
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "tok-a", items[0].TokenValue)
		require.True(t, items[0].LoggedOut)
		require.NotNil(t, items[0].LogoutAt)
		require.Equal(t, "alice", items[0].LogoutBy)
	})

	t.Run("open sessions filterable too", func(t *testing.T) {
		logout := false
		items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{
			Filter: domain.HistoryFilter{LoggedOut: &logout},
			Page:   domain.Page{Limit: 10},
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "tok-b", items[0].TokenValue)
	})

	t.Run("count matches filters", func(t *testing.T) {
		total, err := h.CountByUser(ctx, "alice", domain.HistoryFilter{})
		require.NoError(t, err)
		require.EqualValues(t, 2, total)

		logout := true
		total, err = h.CountByUser(ctx, "alice", domain.HistoryFilter{LoggedOut: &logout})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
	})

	t.Run("history survives token removal", func(t *testing.T) {
		got, err := ts.ReadAccessToken(ctx, "tok-a")
		require.NoError(t, err)
		require.Nil(t, got)

		items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{Page: domain.Page{Limit: 10}})
		require.NoError(t, err)
		require.Len(t, items, 2)
	})
}

func TestHistoryByClientSubstringFilter(t *testing.T) {
	ctx := context.Background()
	h, ts, _ := newHistoryService(t)

	// Usernames chosen so substring and equality matching diverge.
	for _, username := range []string{"a", "ab", "b"} {
		tok := testToken("tok-" + username)
		require.NoError(t, ts.StoreAccessToken(ctx, tok, testAuth(username, "portal"), ""))
	}

	items, err := h.ByClient(ctx, "portal", domain.HistoryQuery{
		Filter: domain.HistoryFilter{Username: "a"},
		Page:   domain.Page{Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	total, err := h.CountByClient(ctx, "portal", domain.HistoryFilter{Username: "a"})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestHistoryByUserAndClient(t *testing.T) {
	ctx := context.Background()
	h, ts, _ := newHistoryService(t)

	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-a"), testAuth("alice", "portal"), ""))
	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-b"), testAuth("alice", "intranet"), ""))
	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-c"), testAuth("bob", "portal"), ""))

	items, err := h.ByUserAndClient(ctx, "alice", "portal", domain.HistoryQuery{
		Page: domain.Page{Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "tok-a", items[0].TokenValue)

	total, err := h.CountByUserAndClient(ctx, "alice", "portal", domain.HistoryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestHistoryPaginationAndSort(t *testing.T) {
	ctx := context.Background()
	h, ts, _ := newHistoryService(t)

	// 15 sessions across distinct clients with lexicographically ordered ids.
	for i := 1; i <= 15; i++ {
		clientID := fmt.Sprintf("client-%02d", i)
		tok := testToken(fmt.Sprintf("tok-%02d", i))
		require.NoError(t, ts.StoreAccessToken(ctx, tok, testAuth("alice", clientID), ""))
	}

	sort := &domain.Sort{Column: 1} // client_id ascending

	first, err := h.ByUser(ctx, "alice", domain.HistoryQuery{
		Sort: sort,
		Page: domain.Page{Offset: 0, Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, first, 10)

	second, err := h.ByUser(ctx, "alice", domain.HistoryQuery{
		Sort: sort,
		Page: domain.Page{Offset: 10, Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, second, 5)

	seen := make(map[string]bool)
	for _, item := range append(first, second...) {
		require.False(t, seen[item.ClientID], "page overlap on %s", item.ClientID)
		seen[item.ClientID] = true
	}
	require.Len(t, seen, 15)

	require.Equal(t, "client-01", first[0].ClientID)
	require.Equal(t, "client-15", second[4].ClientID)

	total, err := h.CountByUser(ctx, "alice", domain.HistoryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 15, total)

	t.Run("descending flips the order", func(t *testing.T) {
		items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{
			Sort: &domain.Sort{Column: 1, Descending: true},
			Page: domain.Page{Limit: 1},
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "client-15", items[0].ClientID)
	})

	t.Run("out of range ordinal falls back to storage order", func(t *testing.T) {
		items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{
			Sort: &domain.Sort{Column: 99},
			Page: domain.Page{Limit: 15},
		})
		require.NoError(t, err)
		require.Len(t, items, 15)
	})
}

func TestHistoryCorruptSnapshotDropsRowAndPurgesToken(t *testing.T) {
	ctx := context.Background()
	h, ts, st := newHistoryService(t)

	tok := testToken("tok-doomed")
	require.NoError(t, ts.StoreAccessToken(ctx, tok, testAuth("alice", "portal"), ""))
	require.NoError(t, ts.StoreAccessToken(ctx, testToken("tok-fine"), testAuth("alice", "intranet"), ""))

	// Corrupt the audit snapshot directly; the live record stays intact
	// until the history read trips over the snapshot.
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.Audit().GetBySessionKey(ctx, tok.Key())
		if err != nil {
			return err
		}
		return tx.Audit().Open(ctx, domain.AuditEntry{
			ID:         entry.ID + "-corrupt",
			SessionKey: "corrupt-session",
			ClientID:   "portal",
			Username:   "alice",
			Token:      []byte("not json"),
			LoginAt:    entry.LoginAt,
		})
	}))

	items, err := h.ByUser(ctx, "alice", domain.HistoryQuery{Page: domain.Page{Limit: 10}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.NotEmpty(t, item.TokenValue)
	}

	// The corrupt row itself is permanent; only its live token record, if
	// any, would have been purged.
	total, err := h.CountByUser(ctx, "alice", domain.HistoryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
}
