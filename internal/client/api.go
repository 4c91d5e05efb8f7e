package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/storage"
)

var (
	ErrUnauthorized = errors.New("credential missing, invalid or expired")
	ErrForbidden    = errors.New("not the owner")
	ErrNotFound     = errors.New("no such record")
	ErrValidation   = errors.New("invalid request")
	ErrServer       = errors.New("server error")
)

// API is the REST client for the calendar server. The session is
// injected; its token rides on every authenticated request.
type API struct {
	baseURL string
	session *Session
	client  *http.Client
}

func NewAPI(baseURL string, session *Session) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *API) Register(ctx context.Context, username string, password string) (storage.User, error) {
	var u storage.User
	body := map[string]string{"username": username, "password": password}
	err := a.do(ctx, http.MethodPost, "/api/auth/register", body, &u)
	return u, err
}

// Login authenticates and installs the credential into the session.
func (a *API) Login(ctx context.Context, username string, password string) error {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		Token string       `json:"token"`
		User  storage.User `json:"user"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return err
	}
	a.session.Token = resp.Token
	a.session.User = resp.User
	return nil
}

func (a *API) CurrentUser(ctx context.Context) (storage.User, error) {
	var u storage.User
	err := a.do(ctx, http.MethodGet, "/api/users/me", nil, &u)
	return u, err
}

func (a *API) ListUsers(ctx context.Context) ([]storage.User, error) {
	var users []storage.User
	err := a.do(ctx, http.MethodGet, "/api/users", nil, &users)
	return users, err
}

func (a *API) ListEvents(ctx context.Context) ([]storage.Event, error) {
	var events []storage.Event
	err := a.do(ctx, http.MethodGet, "/api/events", nil, &events)
	return events, err
}

func (a *API) CreateEvent(ctx context.Context, e storage.Event) (storage.Event, error) {
	var created storage.Event
	err := a.do(ctx, http.MethodPost, "/api/events", e, &created)
	return created, err
}

func (a *API) UpdateEvent(ctx context.Context, id string, e storage.Event) (storage.Event, error) {
	var updated storage.Event
	err := a.do(ctx, http.MethodPut, "/api/events/"+id, e, &updated)
	return updated, err
}

func (a *API) DeleteEvent(ctx context.Context, id string) (storage.Event, error) {
	var removed storage.Event
	err := a.do(ctx, http.MethodDelete, "/api/events/"+id, nil, &removed)
	return removed, err
}

func (a *API) Holidays(ctx context.Context, year int) ([]holiday.Event, error) {
	var holidays []holiday.Event
	err := a.do(ctx, http.MethodGet, "/api/holidays?year="+strconv.Itoa(year), nil, &holidays)
	return holidays, err
}

func (a *API) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.session.Token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	message := payload.Message
	if message == "" {
		message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", message, ErrUnauthorized)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", message, ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", message, ErrNotFound)
	case http.StatusBadRequest, http.StatusConflict:
		return fmt.Errorf("%s: %w", message, ErrValidation)
	default:
		return fmt.Errorf("%s: %w", message, ErrServer)
	}
}
