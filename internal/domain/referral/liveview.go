package referral

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// View is one consistent result set of all referrals visible to an
// institution, merged from the incoming and outgoing streams. Each emission
// replaces the previous set entirely; consumers never apply diffs.
type View struct {
	InstitutionID uuid.UUID   `json:"institutionId"`
	Referrals     []*Referral `json:"referrals"`
	Unread        int         `json:"unread"`
}

// LiveView merges the two per-side subscription streams for an institution
// into one deduplicated, continuously updated view.
//
// No view is emitted until both streams have delivered at least one
// snapshot, so a subscriber can never observe a half-populated list that
// looks like "no outgoing referrals" before the outgoing side has reported.
type LiveView struct {
	source Source
	logger zerolog.Logger
}

func NewLiveView(source Source, logger zerolog.Logger) *LiveView {
	return &LiveView{source: source, logger: logger}
}

// Subscribe attaches to both streams for institutionID and invokes fn with a
// fresh View after every underlying snapshot, once both sides have reported.
// The returned release function tears down both streams together and is safe
// to call more than once.
func (lv *LiveView) Subscribe(ctx context.Context, institutionID uuid.UUID, fn func(View)) (func(), error) {
	ctx, cancelCtx := context.WithCancel(ctx)

	outCh, cancelOut, err := lv.source.WatchOutgoing(ctx, institutionID)
	if err != nil {
		cancelCtx()
		return nil, err
	}
	inCh, cancelIn, err := lv.source.WatchIncoming(ctx, institutionID)
	if err != nil {
		cancelOut()
		cancelCtx()
		return nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Both streams are released together; leaving one attached
			// after teardown leaks the subscription.
			cancelOut()
			cancelIn()
			cancelCtx()
		})
	}

	go func() {
		var outgoing, incoming Snapshot
		var outSeen, inSeen bool

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-outCh:
				if !ok {
					return
				}
				outgoing, outSeen = snap, true
			case snap, ok := <-inCh:
				if !ok {
					return
				}
				incoming, inSeen = snap, true
			}

			if outSeen && inSeen {
				fn(mergeView(institutionID, outgoing, incoming))
			}
		}
	}()

	return release, nil
}

// mergeView deduplicates the two snapshots by referral id, keeping whichever
// copy was updated most recently, and computes the recipient-side unread
// count. The two streams carry no ordering relative to each other, so the
// merge only ever considers the latest snapshot from each side.
func mergeView(institutionID uuid.UUID, outgoing, incoming Snapshot) View {
	byID := make(map[uuid.UUID]*Referral, len(outgoing)+len(incoming))
	for _, r := range outgoing {
		byID[r.ID] = r
	}
	for _, r := range incoming {
		if existing, ok := byID[r.ID]; !ok || r.LastUpdatedAt.After(existing.LastUpdatedAt) {
			byID[r.ID] = r
		}
	}

	merged := make([]*Referral, 0, len(byID))
	unread := 0
	for _, r := range byID {
		merged = append(merged, r)
		if r.ToInstitutionID == institutionID && !r.IsRead {
			unread++
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].LastUpdatedAt.Equal(merged[j].LastUpdatedAt) {
			return merged[i].LastUpdatedAt.After(merged[j].LastUpdatedAt)
		}
		return merged[i].ID.String() < merged[j].ID.String()
	})

	return View{InstitutionID: institutionID, Referrals: merged, Unread: unread}
}
