package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/ldomjan/sharedcal/internal/hub"
	log "github.com/sirupsen/logrus"
)

// ErrReconnectFailed is returned when the bounded reconnect attempts
// are exhausted.
var ErrReconnectFailed = errors.New("failed to reconnect to hub")

const (
	reconnectAttempts = 5
	reconnectBaseWait = time.Second
)

// Socket is the client's single persistent hub connection. It redials
// automatically with linear backoff; the hub replays nothing, so the
// OnReconnect hook is where the owner re-fetches the full state.
type Socket struct {
	base        string
	session     *Session
	attempts    int
	baseWait    time.Duration
	onMessage   func(hub.Envelope)
	onReconnect func(ctx context.Context)

	mu   sync.Mutex
	conn net.Conn
	rw   io.ReadWriter
}

// NewSocket builds the socket for a server base URL like
// "http://host:port". The session token is read at dial time, so the
// socket picks up a login that happens after construction.
func NewSocket(serverURL string, session *Session) (*Socket, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return &Socket{
		base:     fmt.Sprintf("%s://%s/ws", scheme, u.Host),
		session:  session,
		attempts: reconnectAttempts,
		baseWait: reconnectBaseWait,
	}, nil
}

func (s *Socket) OnMessage(handler func(hub.Envelope)) {
	s.onMessage = handler
}

func (s *Socket) OnReconnect(handler func(ctx context.Context)) {
	s.onReconnect = handler
}

func (s *Socket) Connect(ctx context.Context) error {
	wsURL := s.base + "?token=" + url.QueryEscape(s.session.Token)
	conn, br, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("failed to dial hub: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.rw = io.ReadWriter(conn)
	if br != nil {
		s.rw = readWriter{Reader: br, Writer: conn}
	}
	s.mu.Unlock()
	return nil
}

// Connected reports whether the hub connection is currently up.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send announces a mutation on the hub connection.
func (s *Socket) Send(env hub.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("socket is not connected")
	}
	return wsutil.WriteClientMessage(s.conn, ws.OpText, env.Encode())
}

// Listen reads envelopes until the context ends or reconnection is
// exhausted. Malformed payloads are dropped silently.
func (s *Socket) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		s.mu.Lock()
		rw := s.rw
		s.mu.Unlock()
		if rw == nil {
			return fmt.Errorf("socket is not connected")
		}
		data, op, err := wsutil.ReadServerData(rw)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err := s.reconnect(ctx); err != nil {
				return err
			}
			continue
		}
		if op != ws.OpText {
			continue
		}
		env, err := hub.Decode(data)
		if err != nil {
			log.Debugf("dropping malformed hub message: %v", err)
			continue
		}
		if s.onMessage != nil {
			s.onMessage(env)
		}
	}
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Socket) reconnect(ctx context.Context) error {
	s.Close()
	for attempt := 1; attempt <= s.attempts; attempt++ {
		wait := time.Duration(attempt) * s.baseWait
		log.Warnf("hub connection lost, retrying in %s (%d/%d)", wait, attempt, s.attempts)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if err := s.Connect(ctx); err != nil {
			continue
		}
		if s.onReconnect != nil {
			s.onReconnect(ctx)
		}
		return nil
	}
	return ErrReconnectFailed
}

type readWriter struct {
	io.Reader
	io.Writer
}
