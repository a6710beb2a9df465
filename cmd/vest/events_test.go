package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// fakeSubscriber hands out one buffered channel per pattern.
type fakeSubscriber struct {
	mu       sync.Mutex
	channels map[string]chan events.Message
	canceled map[string]bool
	err      error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{channels: map[string]chan events.Message{}, canceled: map[string]bool{}}
}

func (f *fakeSubscriber) Subscribe(topic string) (<-chan events.Message, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	ch := make(chan events.Message, 8)
	f.mu.Lock()
	f.channels[topic] = ch
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.canceled[topic] = true
			f.mu.Unlock()
			close(ch)
		})
	}, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func (f *fakeSubscriber) send(t *testing.T, topic string, e model.Event) {
	t.Helper()
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	ch := f.channels[topic]
	f.mu.Unlock()
	ch <- events.Message{ID: events.MsgID(&e), Topic: e.Topic, Data: data}
}

func TestWatchBus_MergesPatterns(t *testing.T) {
	sub := newFakeSubscriber()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int64, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchBus(ctx, sub, []string{"vesting.tokens.*", "vesting.agreement.signed"}, func(e *model.Event) error {
			got <- e.ID
			return nil
		})
	}()

	waitFor(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.channels) == 2
	})
	sub.send(t, "vesting.tokens.*", model.Event{ID: 7, Topic: "vesting.tokens.released"})
	sub.send(t, "vesting.agreement.signed", model.Event{ID: 8, Topic: "vesting.agreement.signed"})

	seen := map[int64]bool{}
	for len(seen) < 2 {
		select {
		case id := <-got:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out; saw %v", seen)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watchBus returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchBus did not stop on cancel")
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.canceled["vesting.tokens.*"] || !sub.canceled["vesting.agreement.signed"] {
		t.Fatalf("subscriptions not canceled: %v", sub.canceled)
	}
}

func TestWatchBus_DefaultPatternAndHandlerError(t *testing.T) {
	sub := newFakeSubscriber()
	stop := errors.New("stop")

	done := make(chan error, 1)
	go func() {
		done <- watchBus(context.Background(), sub, nil, func(*model.Event) error { return stop })
	}()

	waitFor(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.channels[events.AllTopics] != nil
	})
	sub.mu.Lock()
	ch := sub.channels[events.AllTopics]
	sub.mu.Unlock()
	ch <- events.Message{Topic: "vesting.schedule.created", Data: []byte("not json")}
	sub.send(t, events.AllTopics, model.Event{ID: 1, Topic: "vesting.schedule.created"})

	select {
	case err := <-done:
		if !errors.Is(err, stop) {
			t.Fatalf("watchBus returned %v, want handler error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchBus did not return the handler error")
	}
}

func TestWatchBus_DropsDuplicateDeliveries(t *testing.T) {
	sub := newFakeSubscriber()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int64, 8)
	go func() {
		_ = watchBus(ctx, sub, []string{"vesting.tokens.*", events.AllTopics}, func(e *model.Event) error {
			got <- e.ID
			return nil
		})
	}()
	waitFor(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.channels) == 2
	})

	// Both patterns match the release; the withdrawal arrives once.
	released := model.Event{ID: 5, OpID: "op-a", Topic: events.TopicTokensReleased}
	withdrawn := model.Event{ID: 6, OpID: "op-b", Topic: events.TopicTokensWithdrawn}
	sub.send(t, "vesting.tokens.*", released)
	sub.send(t, events.AllTopics, released)
	sub.send(t, events.AllTopics, withdrawn)

	var ids []int64
	for len(ids) < 2 {
		select {
		case id := <-got:
			ids = append(ids, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out; saw %v", ids)
		}
	}
	select {
	case id := <-got:
		t.Fatalf("event %d delivered twice (saw %v)", id, ids)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecentIDs(t *testing.T) {
	r := newRecentIDs(2)
	if !r.add("a") || !r.add("b") {
		t.Fatal("new ids reported as seen")
	}
	if r.add("a") {
		t.Fatal("duplicate a accepted")
	}
	// "c" evicts the oldest entry.
	if !r.add("c") || !r.add("a") {
		t.Fatal("evicted id not accepted again")
	}
}

func TestWatchBus_SubscribeError(t *testing.T) {
	sub := newFakeSubscriber()
	sub.err = errors.New("no bus")
	err := watchBus(context.Background(), sub, []string{"vesting.>"}, func(*model.Event) error { return nil })
	if err == nil {
		t.Fatal("expected subscribe error")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
