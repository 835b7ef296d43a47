package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/barterhub/internal/store"
)

// Task types, one per delivery channel.
const (
	TaskEmail = "notify:email"
	TaskPush  = "notify:push"
	TaskInApp = "notify:inapp"
)

const queueNotifications = "notifications"

// deliveryPayload is the envelope handed to the channel workers.
type deliveryPayload struct {
	NotificationID string   `json:"notification_id"`
	RecipientID    string   `json:"recipient_id"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	Priority       Priority `json:"priority"`
}

// Enqueuer is the slice of asynq.Client the notifier needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier renders, persists and dispatches notifications.
type Notifier struct {
	store  store.Store
	client Enqueuer
}

func New(st store.Store, client Enqueuer) *Notifier {
	return &Notifier{store: st, client: client}
}

func recipientListKey(recipientID string) string {
	return "barter:notifications:" + recipientID
}

// Create renders the template for typ, persists the notification for seven
// days, appends it to the recipient's feed and, unless scheduled for later,
// hands it to every configured channel. Sent is true only when at least one
// channel accepted the task.
func (n *Notifier) Create(ctx context.Context, recipientID string, typ Type, data map[string]string, scheduledAt *time.Time) (*Notification, error) {
	tpl, ok := templates[typ]
	if !ok {
		return nil, fmt.Errorf("unknown notification type %q", typ)
	}

	notif := &Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        typ,
		Title:       fillTemplate(tpl.Title, data),
		Message:     fillTemplate(tpl.Message, data),
		Priority:    tpl.Priority,
		Channels:    tpl.Channels,
		Data:        data,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now().UTC(),
	}

	key := store.Key("notification", notif.ID)
	if err := n.store.Put(ctx, key, notif, store.TTLNotification); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	if err := n.store.PushList(ctx, recipientListKey(recipientID), notif.ID, store.TTLNotification); err != nil {
		log.Printf("[notify] failed to append notification %s to recipient list: %v", notif.ID, err)
	}

	delivered := n.dispatch(notif)
	if delivered > 0 && scheduledAt == nil {
		notif.Sent = true
		if err := n.store.Put(ctx, key, notif, store.TTLNotification); err != nil {
			log.Printf("[notify] failed to mark notification %s sent: %v", notif.ID, err)
		}
	}
	return notif, nil
}

// dispatch enqueues one task per channel and returns how many channels
// accepted. Channel attempts are independent; one failure never blocks the
// others.
func (n *Notifier) dispatch(notif *Notification) int {
	if n.client == nil {
		log.Printf("[notify] no queue client configured, skipping dispatch for %s", notif.ID)
		return 0
	}

	payload := deliveryPayload{
		NotificationID: notif.ID,
		RecipientID:    notif.RecipientID,
		Title:          notif.Title,
		Message:        notif.Message,
		Priority:       notif.Priority,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[notify] marshal payload for %s: %v", notif.ID, err)
		return 0
	}

	opts := []asynq.Option{asynq.Queue(queueNotifications)}
	if notif.ScheduledAt != nil {
		opts = append(opts, asynq.ProcessAt(*notif.ScheduledAt))
	}

	delivered := 0
	for _, ch := range notif.Channels {
		task, ok := channelTask(ch, b)
		if !ok {
			log.Printf("[notify] unknown channel %q on notification %s", ch, notif.ID)
			continue
		}
		if _, err := n.client.Enqueue(task, opts...); err != nil {
			log.Printf("[notify] enqueue %s for %s failed: %v", ch, notif.ID, err)
			continue
		}
		delivered++
	}
	return delivered
}

func channelTask(ch Channel, payload []byte) (*asynq.Task, bool) {
	switch ch {
	case ChannelEmail:
		return asynq.NewTask(TaskEmail, payload), true
	case ChannelPush:
		return asynq.NewTask(TaskPush, payload), true
	case ChannelInApp:
		return asynq.NewTask(TaskInApp, payload), true
	}
	return nil, false
}

// ListForRecipient returns the recipient's most recent notifications,
// newest first. Expired entries are skipped silently.
func (n *Notifier) ListForRecipient(ctx context.Context, recipientID string, limit int64) ([]Notification, error) {
	ids, err := n.store.RangeList(ctx, recipientListKey(recipientID), limit)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(ids))
	for _, id := range ids {
		var notif Notification
		found, err := n.store.Get(ctx, store.Key("notification", id), &notif)
		if err != nil {
			log.Printf("[notify] failed to load notification %s: %v", id, err)
			continue
		}
		if !found {
			continue
		}
		out = append(out, notif)
	}
	return out, nil
}
