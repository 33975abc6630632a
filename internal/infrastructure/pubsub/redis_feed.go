// Package pubsub carries match change events between server instances over
// Redis Pub/Sub. Each participant filter maps to one channel, so a
// subscriber only receives events for rows it can see.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"skill-exchange/internal/changefeed"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	channelPrefix = "changefeed:"
	defaultBuffer = 64
)

// Channel returns the Redis channel carrying events for filter.
func Channel(filter changefeed.Filter) string {
	return fmt.Sprintf("%s%s:%s:%s", channelPrefix, changefeed.TableMatches, filter.Column, filter.Value)
}

type RedisFeed struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	log    zerolog.Logger
	buffer int
}

func NewRedisFeed(client *redis.Client, buffer int, log zerolog.Logger) *RedisFeed {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	log = log.With().Str("component", "redis_changefeed").Logger()

	settings := gobreaker.Settings{
		Name:        "redis-changefeed-publish",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &RedisFeed{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
		log:    log,
		buffer: buffer,
	}
}

// Publish sends evt to the teacher and student channels of its record.
// While the breaker is open publishes fail fast with gobreaker.ErrOpenState.
func (f *RedisFeed) Publish(ctx context.Context, evt changefeed.Event) error {
	if evt.Table == "" {
		evt.Table = changefeed.TableMatches
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	_, err = f.cb.Execute(func() (interface{}, error) {
		pipe := f.client.Pipeline()
		for _, filter := range changefeed.FiltersFor(evt.Record) {
			pipe.Publish(ctx, Channel(filter), payload)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", evt.Type, evt.Record.ID, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, filter changefeed.Filter, mask changefeed.EventMask) (changefeed.Subscription, error) {
	if !filter.Valid() {
		return nil, changefeed.ErrInvalidFilter
	}
	if mask == 0 {
		mask = changefeed.MaskAll
	}

	channel := Channel(filter)
	ps := f.client.Subscribe(ctx, channel)
	// Wait for the confirmation so no event published after Subscribe
	// returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	s := &redisSub{
		ps:     ps,
		filter: filter,
		mask:   mask,
		events: make(chan changefeed.Event, f.buffer),
		done:   make(chan struct{}),
		log:    f.log.With().Str("channel", channel).Logger(),
	}
	s.wg.Add(1)
	go s.pump()

	f.log.Debug().Str("channel", channel).Msg("subscribed")
	return s, nil
}

type redisSub struct {
	ps     *redis.PubSub
	filter changefeed.Filter
	mask   changefeed.EventMask
	events chan changefeed.Event
	done   chan struct{}
	log    zerolog.Logger

	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (s *redisSub) Events() <-chan changefeed.Event {
	return s.events
}

func (s *redisSub) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
		s.wg.Wait()
	})
	if errors.Is(s.err, redis.ErrClosed) {
		return nil
	}
	return s.err
}

func (s *redisSub) pump() {
	defer s.wg.Done()
	defer close(s.events)

	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var evt changefeed.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				s.log.Warn().Err(err).Msg("dropping undecodable change event")
				continue
			}
			if !s.mask.Has(evt.Type) || !s.filter.Matches(evt.Record) {
				continue
			}
			select {
			case s.events <- evt:
			case <-s.done:
				return
			default:
				s.log.Warn().Str("event_type", string(evt.Type)).Str("match_id", evt.Record.ID.String()).Msg("dropped event due to full buffer")
			}
		}
	}
}
