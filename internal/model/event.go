package model

import (
	"encoding/json"
	"time"
)

// Event is a persisted ledger event. IDs increase with commit order, so
// sorting by ID reproduces the order in which operations took effect.
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	Subject   Address         `json:"subject"`
	Actor     Address         `json:"actor,omitempty"`
	OpID      string          `json:"op_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
