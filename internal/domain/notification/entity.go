package notification

import (
	"encoding/json"
	"time"
)

// Received is the persisted log of a delivered envelope.
type Received struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID      string          `gorm:"column:user_id;index:idx_received_user_created;uniqueIndex:idx_received_user_event" json:"user_id"`
	EventID     *string         `gorm:"column:event_id;uniqueIndex:idx_received_user_event" json:"event_id,omitempty"`
	Event       string          `gorm:"column:event" json:"event"`
	QueueName   string          `gorm:"column:queue_name" json:"queue_name,omitempty"`
	SentAt      string          `gorm:"column:sent_at" json:"sent_at,omitempty"`
	Payload     json.RawMessage `gorm:"column:payload" json:"payload,omitempty"`
	PayloadText string          `gorm:"column:payload_text" json:"payload_text,omitempty"`
	Toast       string          `gorm:"column:toast" json:"toast,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;index:idx_received_user_created" json:"created_at"`
}

func (Received) TableName() string { return "received_notifications" }

// ReceivedFromEnvelope builds the log row for env as seen by userID.
func ReceivedFromEnvelope(userID string, env Envelope, toast ToastDescriptor) *Received {
	r := &Received{
		UserID:      userID,
		Event:       env.Event,
		QueueName:   env.QueueName,
		SentAt:      env.SentAt.String(),
		PayloadText: env.PayloadText,
		Toast:       toast.Message,
	}
	if id := env.EventID.String(); id != "" {
		r.EventID = &id
	}
	if env.Payload != nil {
		if raw, err := json.Marshal(env.Payload); err == nil {
			r.Payload = raw
		}
	}
	return r
}
