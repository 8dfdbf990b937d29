package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/soundscape/internal/handler"
	"github.com/sakif/soundscape/internal/model"
)

func TestBookmarkHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "ada@example.com")
	later := env.addEvent(t, "Later", "Rock", 10)
	sooner := env.addEvent(t, "Sooner", "Rock", 2)

	for _, id := range []string{later.ID, sooner.ID, later.ID} {
		req := withSession(newRequest(t, http.MethodPost, "/api/bookmarks", map[string]any{"eventId": id}), session)
		rr := serve(env.bookmark.HandleCreate, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp handler.BookmarkResponse
		decode(t, rr, &resp)
		assert.Equal(t, id, resp.Bookmark.EventID)
	}

	list := func() handler.BookmarkListResponse {
		rr := serve(env.bookmark.HandleList, withSession(newRequest(t, http.MethodGet, "/api/bookmarks", nil), session))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp handler.BookmarkListResponse
		decode(t, rr, &resp)
		return resp
	}

	resp := list()
	assert.Equal(t, 2, resp.Count, "bookmarking twice keeps one bookmark")
	require.Len(t, resp.Bookmarks, 2)
	assert.Equal(t, "Sooner", resp.Bookmarks[0].Artist)
	assert.Equal(t, "Later", resp.Bookmarks[1].Artist)

	for range 2 {
		req := withURLParam(withSession(newRequest(t, http.MethodDelete, "/api/bookmarks/"+sooner.ID, nil), session), "eventID", sooner.ID)
		rr := serve(env.bookmark.HandleDelete, req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Bookmark removed"}`, rr.Body.String())
	}

	resp = list()
	assert.Equal(t, 1, resp.Count)
}

func TestBookmarkHandler_CreateErrors(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "ada@example.com")

	rr := serve(env.bookmark.HandleCreate,
		withSession(newRequest(t, http.MethodPost, "/api/bookmarks", map[string]any{}), session))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "eventId is required", decodeError(t, rr).Message)

	rr = serve(env.bookmark.HandleCreate,
		withSession(newRequest(t, http.MethodPost, "/api/bookmarks", map[string]any{"eventId": "missing"}), session))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Event not found", decodeError(t, rr).Message)
}

func TestBookmarkHandler_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	// Without the middleware the handler still refuses an absent session.
	rr := serve(env.bookmark.HandleList, newRequest(t, http.MethodGet, "/api/bookmarks", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(env.bookmark.HandleList, withSession(newRequest(t, http.MethodGet, "/api/bookmarks", nil),
		model.Session{State: model.SessionExpired}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
