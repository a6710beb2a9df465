package model

import "time"

// Snapshot is a point-in-time copy of the whole ledger, used for export.
type Snapshot struct {
	TakenAt    time.Time    `json:"taken_at"`
	Owner      Address      `json:"owner"`
	Custody    Address      `json:"custody"`
	Schedules  []*Schedule  `json:"schedules"`
	Agreements []*Agreement `json:"agreements"`
	Balances   []*Balance   `json:"balances"`
	Events     []*Event     `json:"events"`
}
