package model

import (
	"encoding/json"
	"time"
)

// Event is a persisted audit record, mirroring what is published to NATS.
type Event struct {
	ID         int64           `json:"id"`
	Topic      string          `json:"topic"`
	RunID      string          `json:"run_id,omitempty"`
	Generation uint64          `json:"generation"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
