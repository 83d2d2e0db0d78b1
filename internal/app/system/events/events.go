// Package events is the publish/subscribe bus behind live queries: chat
// messages, notification delivery and post/report announcements.
//
// Two implementations exist. NATSBus is used when nats_url is configured so
// every instance sees every event; MemoryBus serves single-instance runs and
// tests.
package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Subjects.
const (
	SubjectPostCreated   = "post.created"
	SubjectReportCreated = "report.created"
)

// ChatSubject is the subject carrying new messages for room.
func ChatSubject(room string) string { return "chat." + room }

// NotifySubject is the subject carrying new notifications for a user.
func NotifySubject(uidHex string) string { return "notify." + uidHex }

// Handler receives one event. It runs on the bus's delivery goroutine and
// must not block.
type Handler func(subject string, data []byte)

// Subscription is an active registration.
type Subscription interface {
	Unsubscribe() error
}

// Bus publishes JSON-encoded events and delivers them to subscribers.
type Bus interface {
	Publish(ctx context.Context, subject string, v any) error
	Subscribe(subject string, h Handler) (Subscription, error)
	Close()
}

// PostCreated announces a new post.
type PostCreated struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"createdAt"`
}

// ReportCreated announces a new pending report for the moderation queue.
type ReportCreated struct {
	ID         string `json:"id"`
	PostID     string `json:"postId"`
	ReporterID string `json:"reporterId"`
	Reason     string `json:"reason"`
}

func encode(subject string, v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", subject, err)
	}
	return data, nil
}
