package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// NewServeMux wires the per-channel delivery handlers.
func NewServeMux(mailer *Mailer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskEmail, func(ctx context.Context, t *asynq.Task) error {
		return handleEmail(mailer, t)
	})
	mux.HandleFunc(TaskPush, handlePush)
	mux.HandleFunc(TaskInApp, handleInApp)
	return mux
}

// StartWorker runs the asynq server in the background, the way the API
// process hosts its own queue consumer.
func StartWorker(redisAddr string, concurrency int, mux *asynq.ServeMux) *asynq.Server {
	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueNotifications: 10,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("[notify] worker stopped: %v", err)
		}
	}()
	log.Printf("[notify] worker started (addr=%s concurrency=%d)", redisAddr, concurrency)
	return server
}

func handleEmail(mailer *Mailer, t *asynq.Task) error {
	var p deliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	// Recipient ids are entity ids, not addresses; the address book lives in
	// the hub. Route through the mailer when it can resolve, log otherwise.
	if err := mailer.Send(p.RecipientID, p.Title, p.Message); err != nil {
		log.Printf("[notify][ERROR] email for %s failed: %v", p.NotificationID, err)
		return err
	}
	log.Printf("[notify] email delivered -> recipient=%s notification=%s", p.RecipientID, p.NotificationID)
	return nil
}

func handlePush(_ context.Context, t *asynq.Task) error {
	var p deliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] push delivered -> recipient=%s priority=%s title=%q", p.RecipientID, p.Priority, p.Title)
	return nil
}

func handleInApp(_ context.Context, t *asynq.Task) error {
	var p deliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] in-app delivered -> recipient=%s notification=%s", p.RecipientID, p.NotificationID)
	return nil
}
