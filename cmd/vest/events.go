package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "Query and follow the ledger event log",
	GroupID: "events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter model.EventFilter
		filter.Topics, _ = cmd.Flags().GetStringSlice("topic")
		filter.AfterID, _ = cmd.Flags().GetInt64("after")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		if s, _ := cmd.Flags().GetString("subject"); s != "" {
			addr, err := model.ParseAddress(s)
			if err != nil {
				return fmt.Errorf("--subject: %w", err)
			}
			filter.Subject = addr
		}

		evts, err := vestClient.ListEvents(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if jsonOutput {
			return printJSON(evts)
		}
		for _, e := range evts {
			printEventLine(os.Stdout, e)
		}
		return nil
	},
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch [<topic-pattern>...]",
	Short: "Stream events as they are committed",
	Long: `Stream events as they are committed.

Patterns use NATS wildcards: "vesting.tokens.*" or "vesting.>".
With --nats (or a profile NATS URL) events come straight from the bus;
otherwise the server streams them, replaying history after --after.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetInt64("after")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = activeProfile().NATSURL
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if natsURL != "" {
			sub, err := events.NewNATSSubscriber(natsURL,
				nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
					log.Printf("nats: disconnected: %v", err)
				}),
				nats.ReconnectHandler(func(_ *nats.Conn) {
					log.Printf("nats: reconnected")
				}),
			)
			if err != nil {
				return err
			}
			defer sub.Close()
			return watchBus(ctx, sub, args, printWatched)
		}
		return vestClient.WatchEvents(ctx, args, after, printWatched)
	},
}

func printWatched(e *model.Event) error {
	if jsonOutput {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	printEventLine(os.Stdout, e)
	return nil
}

// watchBus subscribes to every pattern (all vesting topics when none) and
// hands decoded events to fn until ctx is done. An event matched by more
// than one pattern is delivered once.
func watchBus(ctx context.Context, sub events.Subscriber, patterns []string, fn func(*model.Event) error) error {
	if len(patterns) == 0 {
		patterns = []string{events.AllTopics}
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	merged := make(chan events.Message)
	var wg sync.WaitGroup
	for _, p := range patterns {
		ch, cancel, err := sub.Subscribe(p)
		if err != nil {
			return err
		}
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	seen := newRecentIDs(watchDedupeWindow)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-merged:
			if !ok {
				return nil
			}
			if msg.ID != "" && !seen.add(msg.ID) {
				continue
			}
			var e model.Event
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				log.Printf("skipping undecodable event on %s: %v", msg.Topic, err)
				continue
			}
			if err := fn(&e); err != nil {
				return err
			}
		}
	}
}

// watchDedupeWindow is how many recent message IDs watchBus remembers.
const watchDedupeWindow = 1024

// recentIDs is a fixed-size set of the most recently added IDs.
type recentIDs struct {
	set  map[string]struct{}
	ring []string
	next int
}

func newRecentIDs(n int) *recentIDs {
	return &recentIDs{set: make(map[string]struct{}, n), ring: make([]string, n)}
}

// add records id and reports whether it was new. The oldest ID is forgotten
// once the window is full.
func (r *recentIDs) add(id string) bool {
	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ring[r.next] = id
	r.next = (r.next + 1) % len(r.ring)
	r.set[id] = struct{}{}
	return true
}

func init() {
	eventsListCmd.Flags().StringSlice("topic", nil, "only these exact topics (repeatable)")
	eventsListCmd.Flags().String("subject", "", "only events about this address")
	eventsListCmd.Flags().Int64("after", 0, "only events with ID greater than this")
	eventsListCmd.Flags().Int("limit", 0, "maximum number of events (0 = all)")

	eventsWatchCmd.Flags().Int64("after", -1, "replay events after this ID first (-1 = live only)")
	eventsWatchCmd.Flags().String("nats", os.Getenv("VESTING_NATS_URL"), "read events from this NATS server instead of the API")

	eventsCmd.AddCommand(eventsListCmd, eventsWatchCmd)
}
