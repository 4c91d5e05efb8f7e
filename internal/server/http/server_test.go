package internalhttp_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ldomjan/sharedcal/internal/app"
	"github.com/ldomjan/sharedcal/internal/auth"
	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/hub"
	internalhttp "github.com/ldomjan/sharedcal/internal/server/http"
	"github.com/ldomjan/sharedcal/internal/storage"
	memorystorage "github.com/ldomjan/sharedcal/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv *httptest.Server
}

func newTestEnv(t *testing.T, holidayBaseURL string) *testEnv {
	t.Helper()
	stor := memorystorage.New()
	calendar := app.New(stor)
	authService := auth.New(stor)
	fetcher := holiday.NewFetcher(holiday.Config{BaseURL: holidayBaseURL})
	server := internalhttp.NewServer(
		internalhttp.Config{Host: "127.0.0.1", Port: 0},
		calendar, authService, hub.New(), fetcher,
	)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv}
}

func (e *testEnv) request(t *testing.T, method string, path string, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "lozinka"}
	resp := e.request(t, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.request(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session struct {
		Token string       `json:"token"`
		User  storage.User `json:"user"`
	}
	decode(t, resp, &session)
	require.NotEmpty(t, session.Token)
	return session.Token
}

func draftEvent(title string) storage.Event {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return storage.Event{Title: title, StartTime: start, EndTime: start.Add(time.Hour)}
}

func TestServer(t *testing.T) {
	t.Run("requests without a credential are rejected", func(t *testing.T) {
		e := newTestEnv(t, "http://127.0.0.1:1")
		resp := e.request(t, http.MethodGet, "/api/events", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = e.request(t, http.MethodGet, "/api/events", "bogus", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("event lifecycle", func(t *testing.T) {
		e := newTestEnv(t, "http://127.0.0.1:1")
		token := e.login(t, "ana")

		resp := e.request(t, http.MethodPost, "/api/events", token, draftEvent("standup"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created storage.Event
		decode(t, resp, &created)
		require.NotEmpty(t, created.ID)
		require.Equal(t, "ana", created.OwnerName)

		resp = e.request(t, http.MethodGet, "/api/events", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var events []storage.Event
		decode(t, resp, &events)
		require.Len(t, events, 1)

		patch := draftEvent("moved standup")
		resp = e.request(t, http.MethodPut, "/api/events/"+created.ID, token, patch)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var updated storage.Event
		decode(t, resp, &updated)
		require.Equal(t, "moved standup", updated.Title)

		resp = e.request(t, http.MethodDelete, "/api/events/"+created.ID, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = e.request(t, http.MethodDelete, "/api/events/"+created.ID, token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("validation failures are 400", func(t *testing.T) {
		e := newTestEnv(t, "http://127.0.0.1:1")
		token := e.login(t, "ana")

		resp := e.request(t, http.MethodPost, "/api/events", token, draftEvent(""))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		inverted := draftEvent("backwards")
		inverted.StartTime, inverted.EndTime = inverted.EndTime, inverted.StartTime
		resp = e.request(t, http.MethodPost, "/api/events", token, inverted)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("mutating a foreign event is 403", func(t *testing.T) {
		e := newTestEnv(t, "http://127.0.0.1:1")
		owner := e.login(t, "ana")
		intruder := e.login(t, "boris")

		resp := e.request(t, http.MethodPost, "/api/events", owner, draftEvent("private"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created storage.Event
		decode(t, resp, &created)

		resp = e.request(t, http.MethodPut, "/api/events/"+created.ID, intruder, draftEvent("hijacked"))
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp = e.request(t, http.MethodDelete, "/api/events/"+created.ID, intruder, nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("current user and roster", func(t *testing.T) {
		e := newTestEnv(t, "http://127.0.0.1:1")
		token := e.login(t, "ana")
		e.login(t, "boris")

		resp := e.request(t, http.MethodGet, "/api/users/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var me storage.User
		decode(t, resp, &me)
		require.Equal(t, "ana", me.Username)

		resp = e.request(t, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var users []storage.User
		decode(t, resp, &users)
		require.Len(t, users, 2)
	})

	t.Run("unavailable holiday feed degrades to an empty set", func(t *testing.T) {
		e := newTestEnv(t, "http://127.0.0.1:1")
		token := e.login(t, "ana")

		resp := e.request(t, http.MethodGet, "/api/holidays?year=2025", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var holidays []holiday.Event
		decode(t, resp, &holidays)
		require.Empty(t, holidays)
	})

	t.Run("working holiday feed is proxied", func(t *testing.T) {
		feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"date":"2025-01-01","localName":"Nova Godina"}]`)
		}))
		defer feed.Close()

		e := newTestEnv(t, feed.URL)
		token := e.login(t, "ana")

		resp := e.request(t, http.MethodGet, "/api/holidays?year=2025", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var holidays []holiday.Event
		decode(t, resp, &holidays)
		require.Len(t, holidays, 1)
		require.Equal(t, "holiday-2025-01-01", holidays[0].ID)
		require.True(t, holidays[0].IsHoliday)
	})
}
