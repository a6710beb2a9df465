package model

// EventFilter holds criteria for querying the event log.
type EventFilter struct {
	Topics  []string `json:"topics,omitempty"`   // exact topic names; empty = all
	Subject Address  `json:"subject,omitempty"`  // only events about this address
	AfterID int64    `json:"after_id,omitempty"` // only events with ID > AfterID
	Limit   int      `json:"limit,omitempty"`
}
