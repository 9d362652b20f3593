package referral

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Snapshot is one full result set delivered by a live stream.
type Snapshot []*Referral

// CancelFunc releases a live stream. Calling it more than once is a no-op.
type CancelFunc func()

// Source provides the two live query streams a LiveView merges. The store
// cannot express "sender == X OR recipient == X" in one subscription, so the
// two sides are watched independently.
type Source interface {
	WatchOutgoing(ctx context.Context, institutionID uuid.UUID) (<-chan Snapshot, CancelFunc, error)
	WatchIncoming(ctx context.Context, institutionID uuid.UUID) (<-chan Snapshot, CancelFunc, error)
}

// ChangeNotifier fans write notifications out to interested streams so a
// poll-based source can re-query immediately instead of waiting a full tick.
type ChangeNotifier struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan struct{}]struct{}
}

func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{subs: make(map[uuid.UUID]map[chan struct{}]struct{})}
}

// Notify nudges every stream watching one of the given institutions. The
// send never blocks; a stream that is already nudged stays nudged.
func (n *ChangeNotifier) Notify(institutionIDs ...uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range institutionIDs {
		for ch := range n.subs[id] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (n *ChangeNotifier) subscribe(institutionID uuid.UUID) (chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.subs[institutionID] == nil {
		n.subs[institutionID] = make(map[chan struct{}]struct{})
	}
	n.subs[institutionID][ch] = struct{}{}
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		if set, ok := n.subs[institutionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(n.subs, institutionID)
			}
		}
		n.mu.Unlock()
	}
}

// PollingSource implements Source over the repository: each stream delivers
// an initial snapshot immediately, then re-queries on an interval and on
// change nudges. Snapshots within one stream are delivered in query order;
// the channel holds only the latest undelivered snapshot.
type PollingSource struct {
	repo     Repository
	notifier *ChangeNotifier
	interval time.Duration
	logger   zerolog.Logger
}

func NewPollingSource(repo Repository, notifier *ChangeNotifier, interval time.Duration, logger zerolog.Logger) *PollingSource {
	return &PollingSource{repo: repo, notifier: notifier, interval: interval, logger: logger}
}

func (p *PollingSource) WatchOutgoing(ctx context.Context, institutionID uuid.UUID) (<-chan Snapshot, CancelFunc, error) {
	return p.watch(ctx, institutionID, p.repo.ListBySender)
}

func (p *PollingSource) WatchIncoming(ctx context.Context, institutionID uuid.UUID) (<-chan Snapshot, CancelFunc, error) {
	return p.watch(ctx, institutionID, p.repo.ListByRecipient)
}

func (p *PollingSource) watch(ctx context.Context, institutionID uuid.UUID, query func(context.Context, uuid.UUID) ([]*Referral, error)) (<-chan Snapshot, CancelFunc, error) {
	out := make(chan Snapshot, 1)
	stop := make(chan struct{})
	nudge, unsubscribe := p.notifier.subscribe(institutionID)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			close(stop)
		})
	}

	go func() {
		defer close(out)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		deliver := func() bool {
			referrals, err := query(ctx, institutionID)
			if err != nil {
				p.logger.Error().Err(err).
					Str("institution_id", institutionID.String()).
					Msg("live stream query failed")
				return true // keep the stream alive; next tick retries
			}
			// Replace any undelivered snapshot with the latest one.
			select {
			case <-out:
			default:
			}
			select {
			case out <- Snapshot(referrals):
				return true
			case <-stop:
				return false
			case <-ctx.Done():
				return false
			}
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-nudge:
				if !deliver() {
					return
				}
			case <-ticker.C:
				if !deliver() {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
