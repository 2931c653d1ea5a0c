// Package audit records administrative actions. Writes flow through a
// queue and are persisted by a consumer; failures are logged and never
// surface to the request that triggered them.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"entrylog/internal/queue"
)

// Action types.
const (
	ActionView   = "view"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// MessageType tags audit payloads on the queue.
const MessageType = "audit"

// Record is one audit trail row.
type Record struct {
	AuditID     string    `json:"auditId"`
	AdminID     string    `json:"adminId"`
	ActionType  string    `json:"actionType"`
	TargetTable string    `json:"targetTable,omitempty"`
	TargetID    string    `json:"targetId,omitempty"`
	Description string    `json:"description,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Recorder publishes audit records for asynchronous persistence.
type Recorder struct {
	q queue.Queue
}

// NewRecorder creates a recorder over a queue.
func NewRecorder(q queue.Queue) *Recorder {
	return &Recorder{q: q}
}

// Log enqueues a record. Best-effort: errors are logged, never
// returned, so a broken audit pipeline cannot break the operation
// being audited.
func (r *Recorder) Log(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(rec)
	if err != nil {
		log.Printf("audit marshal failed: %v", err)
		return
	}
	if err := r.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

// Consume drains the queue into the repository until ctx is cancelled.
func Consume(ctx context.Context, q queue.Queue, repo *Repository) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		var rec Record
		if err := json.Unmarshal(msg.Body, &rec); err != nil {
			log.Printf("audit unmarshal failed: %v", err)
			continue
		}
		if err := repo.Insert(ctx, rec); err != nil {
			log.Printf("audit insert failed: %v", err)
		}
	}
	return nil
}
