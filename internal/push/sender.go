// Package push delivers alert notifications to staff browsers.
package push

import (
	"context"
	"fmt"
	"io"
	"log"

	"resto/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

type Sender interface {
	// Send returns the push service status code when a response was received.
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)
}

type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
}

type WebPushSender struct {
	keys VAPID
}

func NewWebPushSender(keys VAPID) *WebPushSender {
	if keys.TTL <= 0 {
		keys.TTL = 300
	}
	return &WebPushSender{keys: keys}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		Subscriber:      s.keys.Subject,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
		TTL:             s.keys.TTL,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("push service status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// LogSender prints notifications instead of sending them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	log.Printf("push to %s: %s", sub.Endpoint, payload)
	return 201, nil
}
