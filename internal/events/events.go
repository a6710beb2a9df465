package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// Event topic constants
const (
	TopicScheduleCreated      = "vesting.schedule.created"
	TopicAgreementSigned      = "vesting.agreement.signed"
	TopicTokensReleased       = "vesting.tokens.released"
	TopicTokensWithdrawn      = "vesting.tokens.withdrawn"
	TopicOwnershipTransferred = "vesting.ownership.transferred"

	// Token ledger events
	TopicTransfer = "vesting.token.transfer"
	TopicApproval = "vesting.token.approval"

	// AllTopics matches every ledger topic (NATS wildcard syntax).
	AllTopics = "vesting.>"
)

// Event payloads

type ScheduleCreated struct {
	Beneficiary     model.Address   `json:"beneficiary"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	StartTime       int64           `json:"start_time"`
	VestingDuration int64           `json:"vesting_duration"`
}

type AgreementSigned struct {
	Signer    model.Address `json:"signer"`
	IPFSHash  string        `json:"ipfs_hash"`
	Timestamp int64         `json:"timestamp"`
}

type TokensReleased struct {
	Beneficiary model.Address   `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
}

type TokensWithdrawn struct {
	To     model.Address   `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type OwnershipTransferred struct {
	PreviousOwner model.Address `json:"previous_owner"`
	NewOwner      model.Address `json:"new_owner"`
}

// Token ledger payloads

type Transfer struct {
	From   model.Address   `json:"from"`
	To     model.Address   `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type Approval struct {
	Owner   model.Address   `json:"owner"`
	Spender model.Address   `json:"spender"`
	Amount  decimal.Decimal `json:"amount"`
}

// New builds an unsaved event envelope around payload. ID and CreatedAt are
// assigned by the store when the event is recorded.
func New(topic string, subject, actor model.Address, payload any) (*model.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", topic, err)
	}
	return &model.Event{
		Topic:   topic,
		Subject: subject,
		Actor:   actor,
		Payload: data,
	}, nil
}

// Publisher emits recorded events to live consumers after commit.
type Publisher interface {
	Publish(ctx context.Context, e *model.Event) error
	Close() error
}

// MatchTopic matches a dot-separated topic against a pattern. "*" matches a
// single segment and ">" one or more trailing segments, as in NATS subjects.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}
