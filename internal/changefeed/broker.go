package changefeed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultBuffer = 64

// Broker is an in-process Feed and Publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[Filter]map[*brokerSub]struct{}
	buffer int
	log    zerolog.Logger
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
}

func NewBroker(buffer int, log zerolog.Logger) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subs:   make(map[Filter]map[*brokerSub]struct{}),
		buffer: buffer,
		log:    log.With().Str("component", "changefeed_broker").Logger(),
	}
}

func (b *Broker) Subscribe(ctx context.Context, filter Filter, mask EventMask) (Subscription, error) {
	if !filter.Valid() {
		return nil, ErrInvalidFilter
	}
	if mask == 0 {
		mask = MaskAll
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	s := &brokerSub{
		broker: b,
		filter: filter,
		mask:   mask,
		ch:     make(chan Event, b.buffer),
	}
	if b.subs[filter] == nil {
		b.subs[filter] = make(map[*brokerSub]struct{})
	}
	b.subs[filter][s] = struct{}{}

	b.log.Debug().Str("filter", filter.String()).Int("subscribers", len(b.subs[filter])).Msg("subscribed")
	return s, nil
}

// Publish fans evt out to every subscription whose filter matches the record.
// A subscriber whose buffer is full drops the event: it already has undelivered
// events queued, which is enough to trigger its next reload.
func (b *Broker) Publish(ctx context.Context, evt Event) error {
	if evt.Table == "" {
		evt.Table = TableMatches
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for _, f := range FiltersFor(evt.Record) {
		for s := range b.subs[f] {
			if !s.mask.Has(evt.Type) {
				continue
			}
			select {
			case s.ch <- evt:
				b.published.Add(1)
			default:
				b.dropped.Add(1)
				b.log.Warn().
					Str("filter", f.String()).
					Str("event_type", string(evt.Type)).
					Str("match_id", evt.Record.ID.String()).
					Msg("dropped event due to full buffer")
			}
		}
	}
	return nil
}

// Close ends every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for f, set := range b.subs {
		for s := range set {
			s.closeLocked()
		}
		delete(b.subs, f)
	}
	return nil
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

type BrokerMetrics struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
}

func (b *Broker) Metrics() BrokerMetrics {
	return BrokerMetrics{Published: b.published.Load(), Dropped: b.dropped.Load()}
}

type brokerSub struct {
	broker *Broker
	filter Filter
	mask   EventMask
	ch     chan Event
	once   sync.Once
}

func (s *brokerSub) Events() <-chan Event {
	return s.ch
}

func (s *brokerSub) Unsubscribe() error {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[s.filter]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.filter)
		}
	}
	s.closeLocked()
	return nil
}

// closeLocked must be called with the broker write lock held so no Publish
// is sending on ch concurrently.
func (s *brokerSub) closeLocked() {
	s.once.Do(func() { close(s.ch) })
}
