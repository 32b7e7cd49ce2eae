package notify

import (
	"encoding/json"
	"log"

	"staychat/internal/models"
	"staychat/internal/storage"
	"staychat/internal/telemetry"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Pusher delivers best-effort web-push notifications to users without a
// live socket session. Delivery failures are logged and counted, never
// surfaced: the durable history is the authority, push is a nudge.
type Pusher struct {
	store           *storage.BboltStorage
	vapidPublicKey  string
	vapidPrivateKey string
	contact         string
}

func New(store *storage.BboltStorage, vapidPublicKey, vapidPrivateKey, contact string) *Pusher {
	return &Pusher{
		store:           store,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		contact:         contact,
	}
}

// Enabled reports whether push credentials are configured.
func (p *Pusher) Enabled() bool {
	return p.vapidPublicKey != "" && p.vapidPrivateKey != ""
}

// NotifyOffline implements hub.Notifier. It runs the actual sends in the
// background so the dispatching session is never blocked on push endpoints.
func (p *Pusher) NotifyOffline(userID string, msg models.Message) {
	if !p.Enabled() {
		return
	}
	go p.send(userID, msg)
}

func (p *Pusher) send(userID string, msg models.Message) {
	subs, err := p.store.ListSubscriptions(userID)
	if err != nil {
		log.Printf("failed to list push subscriptions for %s: %v", userID, err)
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": "New support message",
		"body":  msg.Content,
	})
	if err != nil {
		log.Printf("failed to marshal push payload: %v", err)
		return
	}

	for _, raw := range subs {
		var sub webpush.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			log.Printf("corrupt push subscription for %s: %v", userID, err)
			continue
		}

		resp, err := webpush.SendNotification(payload, &sub, &webpush.Options{
			Subscriber:      p.contact,
			VAPIDPublicKey:  p.vapidPublicKey,
			VAPIDPrivateKey: p.vapidPrivateKey,
			TTL:             60,
		})
		if err != nil {
			telemetry.PushFailures.Inc()
			log.Printf("push delivery to %s failed: %v", userID, err)
			continue
		}
		_ = resp.Body.Close()
	}
}
