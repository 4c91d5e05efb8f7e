package client

import (
	"context"
	"net"
	"net/http"
	"sync"
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

func newSyncBackend(t *testing.T) (http.Handler, *app.App) {
	t.Helper()
	stor := memorystorage.New()
	calendar := app.New(stor)
	server := internalhttp.NewServer(
		internalhttp.Config{Host: "127.0.0.1", Port: 0},
		calendar, auth.New(stor), hub.New(),
		holiday.NewFetcher(holiday.Config{BaseURL: "http://127.0.0.1:1"}),
	)
	return server.Handler(), calendar
}

// trackedListener remembers accepted connections so a test can sever
// upgraded sockets too; closing only the http.Server leaves hijacked
// connections alive.
type trackedListener struct {
	net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func (l *trackedListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.conns = append(l.conns, conn)
	l.mu.Unlock()
	return conn, nil
}

func (l *trackedListener) closeConns() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range l.conns {
		conn.Close()
	}
	l.conns = nil
}

// serveOn serves handler on addr; pass "127.0.0.1:0" for a fresh port.
// The returned stop severs every connection. Re-serving the same
// handler on the same addr keeps the in-memory store and issued
// tokens alive across the restart.
func serveOn(t *testing.T, addr string, handler http.Handler) (stop func(), actualAddr string) {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	tracked := &trackedListener{Listener: ln}
	srv := &http.Server{Handler: handler}
	go srv.Serve(tracked) //nolint:errcheck

	stop = func() {
		srv.Close()
		tracked.closeConns()
	}
	t.Cleanup(stop)
	return stop, ln.Addr().String()
}

func newSyncClient(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := New("http://"+addr, &Session{}, time.UTC)
	require.NoError(t, err)
	c.socket.baseWait = 20 * time.Millisecond

	ctx := context.Background()
	_, err = c.api.Register(ctx, "ana", "lozinka")
	require.NoError(t, err)
	require.NoError(t, c.api.Login(ctx, "ana", "lozinka"))
	require.NoError(t, c.Load(ctx))
	return c
}

func TestSocketReconnect(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)

	t.Run("redials and picks up changes made while away", func(t *testing.T) {
		handler, calendar := newSyncBackend(t)
		stop, addr := serveOn(t, "127.0.0.1:0", handler)
		c := newSyncClient(t, addr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			_ = c.Run(ctx)
		}()
		require.Eventually(t, c.Connected, 3*time.Second, 10*time.Millisecond,
			"socket should connect")

		stop()

		// Mutate the store while the client is cut off, then bring the
		// listener back on the same address. Nothing broadcasts this
		// change; only the post-reconnect full fetch can surface it.
		created, err := calendar.CreateEvent(context.Background(), c.session.User.ID, storage.Event{
			Title:     "missed while away",
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		})
		require.NoError(t, err)
		serveOn(t, addr, handler)

		require.Eventually(t, func() bool {
			if !c.Connected() {
				return false
			}
			_, ok := c.Cache().Get(created.ID)
			return ok
		}, 5*time.Second, 20*time.Millisecond, "client should reconnect and re-fetch")
	})

	t.Run("gives up after five linearly spaced attempts", func(t *testing.T) {
		handler, _ := newSyncBackend(t)
		stop, addr := serveOn(t, "127.0.0.1:0", handler)
		c := newSyncClient(t, addr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		go func() {
			errCh <- c.Run(ctx)
		}()
		require.Eventually(t, c.Connected, 3*time.Second, 10*time.Millisecond,
			"socket should connect")

		lost := time.Now()
		stop()

		select {
		case err := <-errCh:
			require.ErrorIs(t, err, ErrReconnectFailed)
		case <-time.After(5 * time.Second):
			t.Fatal("reconnect loop never gave up")
		}
		// Waits grow linearly: 1+2+3+4+5 base units before giving up.
		require.GreaterOrEqual(t, time.Since(lost), 15*c.socket.baseWait)
		require.False(t, c.Connected())
	})
}
