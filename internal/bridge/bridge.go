// Package bridge is a client for the realtime endpoint. One connection is
// shared by every caller that holds a reference to it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"resto/internal/socket"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReady        State = "ready"
	StateReconnecting State = "reconnecting"
)

var (
	ErrNotConnected = errors.New("bridge not connected")
	ErrRejected     = errors.New("session rejected by server")
)

type Handler func(socket.Envelope)

type Options struct {
	// BaseURL is the server root, for example http://localhost:8080.
	BaseURL    string
	SessionID  string
	Dialer     *websocket.Dialer
	NewBackOff func() backoff.BackOff
}

type Bridge struct {
	endpoint   string
	header     http.Header
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff

	mu        sync.Mutex
	state     State
	refs      int
	cancel    context.CancelFunc
	done      chan struct{}
	conn      *websocket.Conn
	lastErr   error
	snapshot  *socket.Snapshot
	readyMeta socket.Meta
	readyCh   chan struct{}
	handlers  map[string]map[int]Handler
	onState   map[int]func(State)
	nextID    int

	writeMu sync.Mutex
}

func New(opts Options) (*Bridge, error) {
	endpoint, err := RealtimeURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	newBackOff := opts.NewBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	header := http.Header{}
	if opts.SessionID != "" {
		header.Set("Authorization", "Bearer "+opts.SessionID)
	}
	return &Bridge{
		endpoint:   endpoint,
		header:     header,
		dialer:     dialer,
		newBackOff: newBackOff,
		state:      StateDisconnected,
		readyCh:    make(chan struct{}),
		handlers:   make(map[string]map[int]Handler),
		onState:    make(map[int]func(State)),
	}, nil
}

// RealtimeURL maps an http(s) base URL to the raw websocket endpoint.
func RealtimeURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.New("unsupported scheme " + u.Scheme)
	}
	u.Path += "/realtime/websocket"
	return u.String(), nil
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err reports why the bridge stopped on its own, if it did.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Bridge) OnStateChange(fn func(State)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.onState[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.onState, id)
		b.mu.Unlock()
	}
}

// On registers a handler for one event name and returns its unsubscribe func.
func (b *Bridge) On(event string, fn Handler) func() {
	id := b.Listen(event, fn)
	return func() { b.Off(event, id) }
}

// Listen is On for callers that keep the handler id and call Off later.
func (b *Bridge) Listen(event string, fn Handler) int {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	b.handlers[event][id] = fn
	b.mu.Unlock()
	return id
}

func (b *Bridge) Off(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hs, ok := b.handlers[event]; ok {
		delete(hs, id)
		if len(hs) == 0 {
			delete(b.handlers, event)
		}
	}
}

// Ready returns the last socket.ready snapshot, if one has arrived.
func (b *Bridge) Ready() (socket.Snapshot, socket.Meta, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return socket.Snapshot{}, socket.Meta{}, false
	}
	return *b.snapshot, b.readyMeta, true
}

// WaitReady blocks until a snapshot is cached or ctx ends.
func (b *Bridge) WaitReady(ctx context.Context) (socket.Snapshot, error) {
	b.mu.Lock()
	ch := b.readyCh
	b.mu.Unlock()
	select {
	case <-ch:
		snap, _, _ := b.Ready()
		return snap, nil
	case <-ctx.Done():
		return socket.Snapshot{}, ctx.Err()
	}
}

// Acquire takes a reference on the shared connection. The first reference
// starts the connection loop once any previous loop has exited.
func (b *Bridge) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.refs++
	if b.refs > 1 {
		b.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	prev := b.done
	b.cancel = cancel
	b.done = make(chan struct{})
	b.lastErr = nil
	done := b.done
	b.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		b.run(runCtx)
	}()
	return nil
}

// Release drops a reference. The last one closes the connection and waits
// for the loop to exit.
func (b *Bridge) Release() {
	b.mu.Lock()
	if b.refs == 0 {
		b.mu.Unlock()
		return
	}
	b.refs--
	if b.refs > 0 {
		b.mu.Unlock()
		return
	}
	b.cancel()
	done, conn := b.done, b.conn
	b.cancel = nil
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	<-done
}

func (b *Bridge) Refs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// Subscribe narrows the server-side feed to one table. An empty id restores
// the tenant-wide feed.
func (b *Bridge) Subscribe(tableID string) error {
	action := "subscribe"
	if tableID == "" {
		action = "unsubscribe"
	}
	raw, err := json.Marshal(map[string]string{"action": action, "tableId": tableID})
	if err != nil {
		return err
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (b *Bridge) run(ctx context.Context) {
	defer b.setState(StateDisconnected)
	b.setState(StateConnecting)
	for {
		attempt := 0
		conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
			attempt++
			if attempt > 1 {
				b.setState(StateReconnecting)
			}
			conn, resp, err := b.dialer.DialContext(ctx, b.endpoint, b.header)
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusUnauthorized {
					return nil, backoff.Permanent(ErrRejected)
				}
				return nil, err
			}
			return conn, nil
		}, backoff.WithBackOff(b.newBackOff()), backoff.WithMaxElapsedTime(0))
		if err != nil {
			if ctx.Err() == nil {
				b.fail(err)
			}
			return
		}

		b.mu.Lock()
		if ctx.Err() != nil {
			b.mu.Unlock()
			_ = conn.Close()
			return
		}
		b.conn = conn
		b.mu.Unlock()
		b.setState(StateConnected)

		err = b.readLoop(conn)

		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		if websocket.IsCloseError(err, 4001, 4002, 4003) {
			log.Printf("bridge rejected: %v", err)
			b.fail(ErrRejected)
			return
		}
		log.Printf("bridge connection lost: %v", err)
		b.setState(StateReconnecting)
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := socket.Decode(msg)
		if err != nil {
			log.Printf("bridge dropped malformed message: %v", err)
			continue
		}
		if env.Event == socket.EventReady {
			snap, err := socket.ParseReady(env)
			if err != nil {
				log.Printf("bridge ready parse error: %v", err)
				continue
			}
			b.cacheReady(snap, env.Meta)
			b.setState(StateReady)
		}
		b.dispatch(env)
	}
}

func (b *Bridge) cacheReady(snap socket.Snapshot, meta socket.Meta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = &snap
	b.readyMeta = meta
	select {
	case <-b.readyCh:
	default:
		close(b.readyCh)
	}
}

func (b *Bridge) dispatch(env socket.Envelope) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[env.Event]))
	for _, h := range b.handlers[env.Event] {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(env)
	}
}

func (b *Bridge) fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	if b.state == s {
		b.mu.Unlock()
		return
	}
	b.state = s
	listeners := make([]func(State), 0, len(b.onState))
	for _, fn := range b.onState {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
