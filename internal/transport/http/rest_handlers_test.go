package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddychat/buddychat-server/internal/store"
)

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}

func seedConversation(t *testing.T, srv *testServer, fromID, toID int64, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 1; i <= n; i++ {
		err := srv.store.SaveMessage(ctx, &store.Message{
			FromUserID: fromID,
			ToUserID:   toID,
			Body:       fmt.Sprintf("msg-%d", i),
			CreatedAt:  time.Now(),
		})
		require.NoError(t, err)
	}
}

func doJSON(t *testing.T, srv *testServer, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestBuddyEndpoints(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	aliceToken := registerUser(t, srv, "alice")
	bobToken := registerUser(t, srv, "bob")
	bobClaims, err := srv.auth.ValidateToken(bobToken)
	require.NoError(t, err)
	aliceClaims, err := srv.auth.ValidateToken(aliceToken)
	require.NoError(t, err)

	// Unauthenticated requests bounce.
	resp, _ := doJSON(t, srv, http.MethodGet, "/api/buddies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Add bob to alice's list.
	resp, raw := doJSON(t, srv, http.MethodPost, "/api/buddies", aliceToken, map[string]any{
		"user_id": bobClaims.UserID, "group_name": "friends",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var added BuddyResponse
	require.NoError(t, json.Unmarshal(raw, &added))
	assert.Equal(t, bobClaims.UserID, added.UserID)
	assert.Equal(t, "bob", added.Nick, "nick defaults to the screen name")
	assert.Equal(t, "offline", added.Status)

	// Self-add and duplicate are rejected with distinct codes.
	resp, _ = doJSON(t, srv, http.MethodPost, "/api/buddies", aliceToken, map[string]any{
		"user_id": aliceClaims.UserID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/buddies", aliceToken, map[string]any{
		"user_id": bobClaims.UserID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/buddies", aliceToken, map[string]any{
		"user_id": int64(9999),
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Rename the edge.
	resp, _ = doJSON(t, srv, http.MethodPatch, "/api/buddies/"+itoa(bobClaims.UserID), aliceToken, map[string]any{
		"nick": "bobby", "group_name": "work",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, raw = doJSON(t, srv, http.MethodGet, "/api/buddies", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []BuddyResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bobby", list[0].Nick)

	// Delete is idempotent.
	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/buddies/"+itoa(bobClaims.UserID), aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/buddies/"+itoa(bobClaims.UserID), aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, raw = doJSON(t, srv, http.MethodGet, "/api/buddies", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = nil
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Empty(t, list)
}

func TestUserSearchExcludesSelf(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	aliceToken := registerUser(t, srv, "alice")
	registerUser(t, srv, "alicia")

	resp, raw := doJSON(t, srv, http.MethodGet, "/api/users/search?q=ali", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []UserResponse
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "alicia", results[0].ScreenName)

	// Too-short queries are rejected.
	resp, _ = doJSON(t, srv, http.MethodGet, "/api/users/search?q=al", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryEndpointPaging(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	aliceToken := registerUser(t, srv, "alice")
	bobToken := registerUser(t, srv, "bob")
	aliceClaims, err := srv.auth.ValidateToken(aliceToken)
	require.NoError(t, err)
	bobClaims, err := srv.auth.ValidateToken(bobToken)
	require.NoError(t, err)

	seedConversation(t, srv, aliceClaims.UserID, bobClaims.UserID, 5)

	resp, raw := doJSON(t, srv, http.MethodGet,
		"/api/conversations/"+itoa(bobClaims.UserID)+"/messages?limit=2", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var page HistoryResponse
	require.NoError(t, json.Unmarshal(raw, &page))
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(5), page.TotalCount)
	assert.True(t, page.HasMore)
	assert.Equal(t, "msg-4", page.Messages[0].Content)
	assert.Equal(t, "msg-5", page.Messages[1].Content)

	// Page backwards with the cursor until history runs out.
	resp, raw = doJSON(t, srv, http.MethodGet,
		"/api/conversations/"+itoa(bobClaims.UserID)+"/messages?limit=4&before_id="+itoa(page.Messages[0].ID),
		aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &page))
	require.Len(t, page.Messages, 3)
	assert.False(t, page.HasMore)
	assert.Equal(t, "msg-1", page.Messages[0].Content)
}

func TestPresenceEndpointMasksInvisible(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	aliceToken := registerUser(t, srv, "alice")
	bobToken := registerUser(t, srv, "bob")
	bobClaims, err := srv.auth.ValidateToken(bobToken)
	require.NoError(t, err)

	resp, raw := doJSON(t, srv, http.MethodGet,
		"/api/users/"+itoa(bobClaims.UserID)+"/presence", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p PresenceResponse
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "offline", p.Status)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/users/9999/presence", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
