package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// eventLog is a fake ListEvents backed by a slice.
type eventLog struct {
	mu     sync.Mutex
	events []*model.Event
}

func (l *eventLog) append(topic string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, &model.Event{ID: int64(len(l.events) + 1), Topic: topic})
}

func (l *eventLog) list(_ context.Context, f model.EventFilter) ([]*model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.Event
	for _, e := range l.events {
		if e.ID > f.AfterID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestPollEvents_ReplaysAndFilters(t *testing.T) {
	log := &eventLog{}
	log.append("vesting.token.transfer")
	log.append("vesting.tokens.released")
	log.append("vesting.tokens.withdrawn")

	var got []int64
	err := pollEvents(context.Background(), log.list, time.Millisecond, []string{"vesting.tokens.*"}, 1, func(e *model.Event) error {
		got = append(got, e.ID)
		if len(got) == 2 {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("pollEvents = %v, want errStop", err)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("got ids %v, want [2 3]", got)
	}
}

func TestPollEvents_LiveTailSkipsHistory(t *testing.T) {
	log := &eventLog{}
	log.append("vesting.tokens.released")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var once sync.Once
	var got *model.Event
	err := pollEvents(ctx, func(ctx context.Context, f model.EventFilter) ([]*model.Event, error) {
		evts, err := log.list(ctx, f)
		// Add a new event after the first poll has seen the history.
		once.Do(func() { log.append("vesting.tokens.released") })
		return evts, err
	}, time.Millisecond, nil, -1, func(e *model.Event) error {
		got = e
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("pollEvents = %v, want errStop", err)
	}
	if got.ID != 2 {
		t.Fatalf("first delivered event id = %d, want 2", got.ID)
	}
}

func TestPollEvents_StopsOnCancel(t *testing.T) {
	log := &eventLog{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pollEvents(ctx, log.list, time.Millisecond, nil, 0, func(*model.Event) error {
		t.Fatal("unexpected event")
		return nil
	}); err != nil {
		t.Fatalf("pollEvents = %v, want nil on cancel", err)
	}
}
