package notify

import (
	"strings"
	"time"
)

// Type enumerates the notification events the engine emits.
type Type string

const (
	TypeNewMatchFound         Type = "new_match_found"
	TypeMatchAccepted         Type = "match_accepted"
	TypeTransactionCreated    Type = "transaction_created"
	TypeTransactionProgress   Type = "transaction_progress_update"
	TypeTransactionCompleted  Type = "transaction_completed"
	TypeListingExpired        Type = "listing_expired"
	TypeNewRequestForCategory Type = "new_request_for_category"
)

// Channel is a delivery route for a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Priority of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type template struct {
	Title    string
	Message  string
	Priority Priority
	Channels []Channel
}

// templates maps each notification type to its template, default priority
// and default channel set. Read-only after package init.
var templates = map[Type]template{
	TypeNewMatchFound: {
		Title:    "New barter matches found",
		Message:  "We found {count} potential matches for \"{title}\". The best one scores {score}.",
		Priority: PriorityNormal,
		Channels: []Channel{ChannelInApp, ChannelEmail},
	},
	TypeMatchAccepted: {
		Title:    "Your match was accepted",
		Message:  "{name} accepted the match for \"{title}\". You can now set up the exchange.",
		Priority: PriorityHigh,
		Channels: []Channel{ChannelInApp, ChannelEmail, ChannelPush},
	},
	TypeTransactionCreated: {
		Title:    "Barter exchange started",
		Message:  "An exchange for \"{title}\" has been created. Estimated completion: {estimated_completion}.",
		Priority: PriorityHigh,
		Channels: []Channel{ChannelInApp, ChannelEmail},
	},
	TypeTransactionProgress: {
		Title:    "Exchange progress updated",
		Message:  "Progress on \"{title}\" is now {provider_progress}% / {requester_progress}%.",
		Priority: PriorityLow,
		Channels: []Channel{ChannelInApp},
	},
	TypeTransactionCompleted: {
		Title:    "Barter exchange completed",
		Message:  "The exchange for \"{title}\" is complete. Leave a rating for your partner.",
		Priority: PriorityNormal,
		Channels: []Channel{ChannelInApp, ChannelEmail},
	},
	TypeListingExpired: {
		Title:    "Your listing expired",
		Message:  "Your listing \"{title}\" has expired. Renew it to keep receiving matches.",
		Priority: PriorityLow,
		Channels: []Channel{ChannelInApp, ChannelEmail},
	},
	TypeNewRequestForCategory: {
		Title:    "New request in your category",
		Message:  "Someone nearby is looking for {category}: \"{title}\".",
		Priority: PriorityNormal,
		Channels: []Channel{ChannelInApp},
	},
}

// Notification is a rendered notification for one recipient.
type Notification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Type        Type              `json:"type"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Priority    Priority          `json:"priority"`
	Channels    []Channel         `json:"channels"`
	Data        map[string]string `json:"data,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	Sent        bool              `json:"sent"`
	CreatedAt   time.Time         `json:"created_at"`
}

// fillTemplate substitutes {key} placeholders from the data map. Unknown
// placeholders are left in place.
func fillTemplate(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
