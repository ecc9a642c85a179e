package hub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"resto/internal/models"
)

func TestBroadcastIsTenantScoped(t *testing.T) {
	h := New()
	a := &Client{ID: "a", Send: make(chan []byte, 1), Subscription: Subscription{TenantID: "t1"}}
	b := &Client{ID: "b", Send: make(chan []byte, 1), Subscription: Subscription{TenantID: "t2"}}
	idle := &Client{ID: "idle", Send: make(chan []byte, 1)}
	h.Register(a)
	h.Register(b)
	h.Register(idle)

	h.Broadcast([]byte("hello"), Subscription{TenantID: "t1"})

	select {
	case msg := <-a.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected payload %s", msg)
		}
	default:
		t.Fatalf("expected tenant t1 client to receive message")
	}
	if len(b.Send) != 0 {
		t.Fatalf("tenant t2 client received a foreign message")
	}
	if len(idle.Send) != 0 {
		t.Fatalf("unsubscribed client received a message")
	}
}

func TestBroadcastTableFilter(t *testing.T) {
	h := New()
	qr := &Client{ID: "qr", Send: make(chan []byte, 2), Subscription: Subscription{TenantID: "t1", TableID: "5"}}
	h.Register(qr)

	h.Broadcast([]byte("other"), Subscription{TenantID: "t1", TableID: "6"})
	h.Broadcast([]byte("mine"), Subscription{TenantID: "t1", TableID: "5"})
	h.Broadcast([]byte("tenant"), Subscription{TenantID: "t1"})

	if len(qr.Send) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(qr.Send))
	}
	if msg := <-qr.Send; string(msg) != "mine" {
		t.Fatalf("unexpected first message %s", msg)
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := New()
	c := &Client{ID: "slow", Send: make(chan []byte, 1), Subscription: Subscription{TenantID: "t1"}}
	h.Register(c)

	h.Broadcast([]byte("1"), Subscription{TenantID: "t1"})
	h.Broadcast([]byte("2"), Subscription{TenantID: "t1"})

	if len(c.Send) != 1 {
		t.Fatalf("expected buffered message only, got %d", len(c.Send))
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	h := New()
	c := &Client{ID: "c", Send: make(chan []byte, 1)}
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)
	if _, ok := <-c.Send; ok {
		t.Fatalf("expected closed channel")
	}
	if h.Count() != 0 {
		t.Fatalf("expected empty hub")
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","tableId":"3"}`))
	if !ok || msg.TableID != "3" {
		t.Fatalf("unexpected parse %+v %v", msg, ok)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"dance"}`)); ok {
		t.Fatalf("expected unknown action to be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatalf("expected invalid json to be rejected")
	}
}

func TestRunHeartbeat(t *testing.T) {
	h := New()
	c := &Client{ID: "c", Send: make(chan []byte, 4), Subscription: Subscription{TenantID: "t1"}}
	h.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.RunHeartbeat(ctx, 5*time.Millisecond, func() ([]byte, error) { return []byte("beat"), nil })
		close(done)
	}()

	select {
	case msg := <-c.Send:
		if string(msg) != "beat" {
			t.Fatalf("unexpected heartbeat %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("no heartbeat received")
	}
	cancel()
	<-done
}

type fakeConn struct {
	mu       sync.Mutex
	url      string
	incoming chan string
	sent     []string
	closed   uint32
	sentCh   chan string
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{url: url, incoming: make(chan string), sentCh: make(chan string, 8)}
}

func (f *fakeConn) Request() *http.Request {
	return httptest.NewRequest("GET", f.url, nil)
}

func (f *fakeConn) Recv() (string, error) {
	msg, ok := <-f.incoming
	if !ok {
		return "", io.EOF
	}
	return msg, nil
}

func (f *fakeConn) Send(msg string) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	f.sentCh <- msg
	return nil
}

func (f *fakeConn) Close(status uint32, reason string) error {
	f.mu.Lock()
	f.closed = status
	f.mu.Unlock()
	return nil
}

func TestServeRejectsMissingSession(t *testing.T) {
	s := &Sessions{Hub: New(), Authenticate: func(ctx context.Context, id string) (models.Session, error) {
		t.Fatalf("authenticate should not be called")
		return models.Session{}, nil
	}}
	conn := newFakeConn("/realtime")
	s.Serve(conn)
	if conn.closed != 4001 {
		t.Fatalf("expected close 4001, got %d", conn.closed)
	}
}

func TestServeRejectsInvalidSession(t *testing.T) {
	s := &Sessions{Hub: New(), Authenticate: func(ctx context.Context, id string) (models.Session, error) {
		return models.Session{}, errors.New("nope")
	}}
	conn := newFakeConn("/realtime?session_id=bad")
	s.Serve(conn)
	if conn.closed != 4002 {
		t.Fatalf("expected close 4002, got %d", conn.closed)
	}
}

func TestServeSendsReadyThenBroadcasts(t *testing.T) {
	h := New()
	s := &Sessions{
		Hub: h,
		Authenticate: func(ctx context.Context, id string) (models.Session, error) {
			return models.Session{SessionID: id, TenantID: "t1"}, nil
		},
		Snapshot: func(ctx context.Context, tenantID string) ([]byte, error) {
			return []byte(`{"event":"socket.ready"}`), nil
		},
	}
	conn := newFakeConn("/realtime?session_id=s1")
	finished := make(chan struct{})
	go func() {
		s.Serve(conn)
		close(finished)
	}()

	select {
	case msg := <-conn.sentCh:
		if msg != `{"event":"socket.ready"}` {
			t.Fatalf("expected ready first, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("ready not sent")
	}

	deadline := time.Now().Add(time.Second)
	for h.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Broadcast([]byte("update"), Subscription{TenantID: "t1"})
	select {
	case msg := <-conn.sentCh:
		if msg != "update" {
			t.Fatalf("unexpected message %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("broadcast not delivered")
	}

	close(conn.incoming)
	<-finished
	if h.Count() != 0 {
		t.Fatalf("expected client to be unregistered")
	}
}

func TestHeldClientReceivesFirstFrameBeforeQueued(t *testing.T) {
	h := New()
	c := &Client{ID: "c", Send: make(chan []byte, 4), Subscription: Subscription{TenantID: "t1"}}
	h.RegisterHeld(c)
	h.Broadcast([]byte("update-1"), Subscription{TenantID: "t1"})
	h.Broadcast([]byte("update-2"), Subscription{TenantID: "t1"})
	if len(c.Send) != 0 {
		t.Fatalf("expected nothing sent while held, got %d", len(c.Send))
	}

	h.Activate(c, []byte("ready"))
	h.Broadcast([]byte("update-3"), Subscription{TenantID: "t1"})
	for _, want := range []string{"ready", "update-1", "update-2", "update-3"} {
		select {
		case got := <-c.Send:
			if string(got) != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		default:
			t.Fatalf("expected %s, got nothing", want)
		}
	}
}

func TestServeKeepsEventsPublishedDuringSnapshot(t *testing.T) {
	h := New()
	s := &Sessions{
		Hub: h,
		Authenticate: func(ctx context.Context, id string) (models.Session, error) {
			return models.Session{SessionID: id, TenantID: "t1"}, nil
		},
		Snapshot: func(ctx context.Context, tenantID string) ([]byte, error) {
			h.Broadcast([]byte("concurrent-update"), Subscription{TenantID: tenantID})
			return []byte(`{"event":"socket.ready"}`), nil
		},
	}
	conn := newFakeConn("/realtime?session_id=s1")
	finished := make(chan struct{})
	go func() {
		s.Serve(conn)
		close(finished)
	}()

	for _, want := range []string{`{"event":"socket.ready"}`, "concurrent-update"} {
		select {
		case msg := <-conn.sentCh:
			if msg != want {
				t.Fatalf("expected %s, got %s", want, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected %s, got nothing", want)
		}
	}
	close(conn.incoming)
	<-finished
}
