package usecase

import (
	"context"
	"sync"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/domain/match"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MatchLoader performs the full load backing a MatchView.
type MatchLoader interface {
	ListMatches(ctx context.Context, userID uuid.UUID) ([]match.Match, error)
}

type MatchViewOptions struct {
	// OnRefresh is called with every new snapshot, including the seed load.
	// Calls never overlap. It must not call Close.
	OnRefresh func(matches []match.Match)
	// OnError is called when a refresh fails; the previous snapshot is kept.
	OnError func(err error)
	Logger  zerolog.Logger
}

// MatchView keeps the matches where one user is teacher or student in sync
// with the store. Every insert or update event on either side triggers a
// full reload that replaces the snapshot. Reloads run on a single goroutine;
// events that arrive while one is in flight collapse into one follow-up reload.
type MatchView struct {
	userID    uuid.UUID
	loader    MatchLoader
	log       zerolog.Logger
	onRefresh func([]match.Match)
	onError   func(error)

	ctx    context.Context
	cancel context.CancelFunc
	subs   []changefeed.Subscription
	kick   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.RWMutex
	matches []match.Match
	version uint64
}

func NewMatchView(ctx context.Context, userID uuid.UUID, loader MatchLoader, feed changefeed.Feed, opts MatchViewOptions) (*MatchView, error) {
	if userID == uuid.Nil {
		return nil, validationError("empty user id")
	}

	viewCtx, cancel := context.WithCancel(ctx)
	v := &MatchView{
		userID:    userID,
		loader:    loader,
		log:       opts.Logger.With().Str("component", "match_view").Str("user_id", userID.String()).Logger(),
		onRefresh: opts.OnRefresh,
		onError:   opts.OnError,
		ctx:       viewCtx,
		cancel:    cancel,
		kick:      make(chan struct{}, 1),
	}

	// Subscribe before the seed load so no change between the two is missed.
	for _, f := range []changefeed.Filter{changefeed.TeacherFilter(userID), changefeed.StudentFilter(userID)} {
		sub, err := feed.Subscribe(viewCtx, f, changefeed.MaskInsert|changefeed.MaskUpdate)
		if err != nil {
			v.teardown()
			return nil, storeError("subscribe "+f.String(), err)
		}
		v.subs = append(v.subs, sub)
	}

	seed, err := loader.ListMatches(viewCtx, userID)
	if err != nil {
		v.teardown()
		return nil, err
	}
	v.apply(seed)

	for _, sub := range v.subs {
		v.wg.Add(1)
		go v.forward(sub)
	}
	v.wg.Add(1)
	go v.run()

	return v, nil
}

// Snapshot returns a copy of the current view.
func (v *MatchView) Snapshot() []match.Match {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]match.Match, len(v.matches))
	copy(out, v.matches)
	return out
}

// Version counts applied snapshots; the seed load is version 1.
func (v *MatchView) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Done is closed once the view has been closed or its parent context ended.
func (v *MatchView) Done() <-chan struct{} {
	return v.ctx.Done()
}

// Close unsubscribes and waits for an in-flight reload to finish. No
// callback runs after Close returns.
func (v *MatchView) Close() error {
	var err error
	v.once.Do(func() {
		err = v.teardown()
		v.wg.Wait()
	})
	return err
}

func (v *MatchView) teardown() error {
	v.cancel()
	var firstErr error
	for _, sub := range v.subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (v *MatchView) forward(sub changefeed.Subscription) {
	defer v.wg.Done()
	events := sub.Events()
	for {
		select {
		case <-v.ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				if v.ctx.Err() == nil {
					v.log.Warn().Msg("change feed closed, view no longer updates")
				}
				return
			}
			v.log.Debug().Str("event", string(evt.Type)).Str("match_id", evt.Record.ID.String()).Msg("match change received")
			select {
			case v.kick <- struct{}{}:
			default:
			}
		}
	}
}

func (v *MatchView) run() {
	defer v.wg.Done()
	for {
		select {
		case <-v.ctx.Done():
			return
		case <-v.kick:
			v.refresh()
		}
	}
}

func (v *MatchView) refresh() {
	items, err := v.loader.ListMatches(v.ctx, v.userID)
	if v.ctx.Err() != nil {
		return
	}
	if err != nil {
		v.log.Warn().Err(err).Msg("match view refresh failed, keeping previous snapshot")
		if v.onError != nil {
			v.onError(err)
		}
		return
	}
	v.apply(items)
}

func (v *MatchView) apply(items []match.Match) {
	v.mu.Lock()
	v.matches = items
	v.version++
	snapshot := make([]match.Match, len(items))
	copy(snapshot, items)
	v.mu.Unlock()

	if v.onRefresh != nil {
		v.onRefresh(snapshot)
	}
}
