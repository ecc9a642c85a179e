package hub

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"resto/internal/models"

	"github.com/google/uuid"
)

// Conn is the part of a sockjs session the hub needs.
type Conn interface {
	Request() *http.Request
	Recv() (string, error)
	Send(string) error
	Close(status uint32, reason string) error
}

type Authenticator func(ctx context.Context, sessionID string) (models.Session, error)

// SnapshotFunc returns the encoded socket.ready envelope for a tenant.
type SnapshotFunc func(ctx context.Context, tenantID string) ([]byte, error)

type Sessions struct {
	Hub          *Hub
	Authenticate Authenticator
	Snapshot     SnapshotFunc
	Buffer       int
}

// Serve runs one realtime connection until the peer goes away.
func (s *Sessions) Serve(conn Conn) {
	req := conn.Request()
	sessionID := SessionIDFromRequest(req)
	if sessionID == "" {
		_ = conn.Close(4001, "missing session")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	authSession, err := s.Authenticate(ctx, sessionID)
	cancel()
	if err != nil {
		_ = conn.Close(4002, "invalid session")
		return
	}
	if authSession.TenantID == "" {
		_ = conn.Close(4003, "session without tenant")
		return
	}

	buffer := s.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	client := &Client{
		ID:           uuid.NewString(),
		Send:         make(chan []byte, buffer),
		Subscription: Subscription{TenantID: authSession.TenantID},
	}

	if s.Snapshot == nil {
		s.Hub.Register(client)
	} else {
		// Held from before the snapshot read so no broadcast falls between the two.
		s.Hub.RegisterHeld(client)
	}
	defer s.Hub.Unregister(client)

	if s.Snapshot != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ready, err := s.Snapshot(ctx, authSession.TenantID)
		cancel()
		if err != nil {
			log.Printf("snapshot error tenant=%s: %v", authSession.TenantID, err)
			_ = conn.Close(4500, "snapshot failed")
			return
		}
		s.Hub.Activate(client, ready)
	}

	go func() {
		for msg := range client.Send {
			if err := conn.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := conn.Recv()
		if err != nil {
			return
		}
		parsed, ok := ParseSubscribe([]byte(msg))
		if !ok {
			continue
		}
		sub := Subscription{TenantID: authSession.TenantID}
		if parsed.Action == "subscribe" {
			sub.TableID = parsed.TableID
		}
		s.Hub.UpdateSubscription(client, sub)
	}
}

func SessionIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("session_id"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
