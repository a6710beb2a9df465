package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// Source produces a consistent copy of the ledger. *vesting.Service
// satisfies it.
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version        string        `json:"version"`
	Type           string        `json:"type"`
	Timestamp      time.Time     `json:"timestamp"`
	Owner          model.Address `json:"owner"`
	Custody        model.Address `json:"custody"`
	ScheduleCount  int           `json:"schedule_count"`
	AgreementCount int           `json:"agreement_count"`
	BalanceCount   int           `json:"balance_count"`
	EventCount     int           `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes a snapshot of the ledger as JSONL to w: a header line,
// then schedules, agreements, balances and events. Records are sorted by
// address (events by ID) so unchanged ledgers export identically apart from
// the header timestamp.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) error {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	sort.Slice(snap.Schedules, func(i, j int) bool {
		return snap.Schedules[i].Beneficiary < snap.Schedules[j].Beneficiary
	})
	sort.Slice(snap.Agreements, func(i, j int) bool {
		return snap.Agreements[i].Signer < snap.Agreements[j].Signer
	})
	sort.Slice(snap.Balances, func(i, j int) bool {
		return snap.Balances[i].Address < snap.Balances[j].Address
	})
	sort.Slice(snap.Events, func(i, j int) bool {
		return snap.Events[i].ID < snap.Events[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:        "1",
		Type:           "header",
		Timestamp:      snap.TakenAt.UTC(),
		Owner:          snap.Owner,
		Custody:        snap.Custody,
		ScheduleCount:  len(snap.Schedules),
		AgreementCount: len(snap.Agreements),
		BalanceCount:   len(snap.Balances),
		EventCount:     len(snap.Events),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, s := range snap.Schedules {
		if err := enc.Encode(record{Type: "schedule", Data: s}); err != nil {
			return fmt.Errorf("encode schedule %s: %w", s.Beneficiary, err)
		}
	}
	for _, a := range snap.Agreements {
		if err := enc.Encode(record{Type: "agreement", Data: a}); err != nil {
			return fmt.Errorf("encode agreement %s: %w", a.Signer, err)
		}
	}
	for _, b := range snap.Balances {
		if err := enc.Encode(record{Type: "balance", Data: b}); err != nil {
			return fmt.Errorf("encode balance %s: %w", b.Address, err)
		}
	}
	for _, e := range snap.Events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %d: %w", e.ID, err)
		}
	}

	return nil
}

// readHeader decodes the header line of an exported snapshot.
func readHeader(data []byte) (header, error) {
	var h header
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Type != "header" {
		return h, fmt.Errorf("first record is %q, not header", h.Type)
	}
	return h, nil
}
