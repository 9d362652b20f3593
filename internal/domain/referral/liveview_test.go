package referral

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeSource hands out manually fed channels so tests control exactly when
// each side delivers a snapshot.
type fakeSource struct {
	mu            sync.Mutex
	outgoing      chan Snapshot
	incoming      chan Snapshot
	outCancels    int
	inCancels     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		outgoing: make(chan Snapshot, 4),
		incoming: make(chan Snapshot, 4),
	}
}

func (f *fakeSource) WatchOutgoing(_ context.Context, _ uuid.UUID) (<-chan Snapshot, CancelFunc, error) {
	return f.outgoing, func() {
		f.mu.Lock()
		f.outCancels++
		f.mu.Unlock()
	}, nil
}

func (f *fakeSource) WatchIncoming(_ context.Context, _ uuid.UUID) (<-chan Snapshot, CancelFunc, error) {
	return f.incoming, func() {
		f.mu.Lock()
		f.inCancels++
		f.mu.Unlock()
	}, nil
}

func (f *fakeSource) cancels() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outCancels, f.inCancels
}

func collectViews(t *testing.T) (func(View), <-chan View) {
	t.Helper()
	ch := make(chan View, 16)
	return func(v View) { ch <- v }, ch
}

func waitForView(t *testing.T, ch <-chan View) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view emission")
		return View{}
	}
}

func assertNoView(t *testing.T, ch <-chan View) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected view emitted: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func testInstitution() uuid.UUID {
	return uuid.MustParse("22222222-2222-2222-2222-222222222222")
}

func mkReferral(id string, to uuid.UUID, updated time.Time, isRead bool) *Referral {
	return &Referral{
		ID:              uuid.MustParse(id),
		ToInstitutionID: to,
		IsRead:          isRead,
		LastUpdatedAt:   updated,
	}
}

func TestLiveViewWaitsForBothStreams(t *testing.T) {
	src := newFakeSource()
	lv := NewLiveView(src, zerolog.Nop())
	fn, views := collectViews(t)

	release, err := lv.Subscribe(context.Background(), testInstitution(), fn)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	// Only one side has reported: nothing may be emitted, even an empty
	// outgoing set must not masquerade as "no outgoing referrals".
	src.incoming <- Snapshot{mkReferral("33333333-3333-3333-3333-333333333331", testInstitution(), time.Now(), false)}
	assertNoView(t, views)

	src.outgoing <- Snapshot{}
	v := waitForView(t, views)
	if len(v.Referrals) != 1 {
		t.Fatalf("merged view has %d referrals, want 1", len(v.Referrals))
	}
}

func TestLiveViewDeduplicatesLatestWins(t *testing.T) {
	src := newFakeSource()
	lv := NewLiveView(src, zerolog.Nop())
	fn, views := collectViews(t)
	inst := testInstitution()

	release, err := lv.Subscribe(context.Background(), inst, fn)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	older := time.Now()
	newer := older.Add(time.Minute)
	id := "33333333-3333-3333-3333-333333333332"

	stale := mkReferral(id, inst, older, false)
	stale.Status = StatusPending
	fresh := mkReferral(id, inst, newer, false)
	fresh.Status = StatusAccepted

	src.outgoing <- Snapshot{stale}
	src.incoming <- Snapshot{fresh}

	v := waitForView(t, views)
	if len(v.Referrals) != 1 {
		t.Fatalf("merged view has %d referrals, want 1", len(v.Referrals))
	}
	if v.Referrals[0].Status != StatusAccepted {
		t.Errorf("merge kept the stale copy: status = %q", v.Referrals[0].Status)
	}
}

func TestLiveViewUnreadCount(t *testing.T) {
	src := newFakeSource()
	lv := NewLiveView(src, zerolog.Nop())
	fn, views := collectViews(t)
	inst := testInstitution()
	other := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	release, err := lv.Subscribe(context.Background(), inst, fn)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	now := time.Now()
	src.incoming <- Snapshot{
		mkReferral("33333333-3333-3333-3333-333333333341", inst, now, false),
		mkReferral("33333333-3333-3333-3333-333333333342", inst, now, true),
	}
	// Outgoing referrals point at the other institution; they never count
	// as unread for us even when the flag is false.
	src.outgoing <- Snapshot{
		mkReferral("33333333-3333-3333-3333-333333333343", other, now, false),
	}

	v := waitForView(t, views)
	if v.Unread != 1 {
		t.Errorf("unread = %d, want 1", v.Unread)
	}
	if len(v.Referrals) != 3 {
		t.Errorf("merged view has %d referrals, want 3", len(v.Referrals))
	}
}

func TestLiveViewEmissionsReplaceWholeSet(t *testing.T) {
	src := newFakeSource()
	lv := NewLiveView(src, zerolog.Nop())
	fn, views := collectViews(t)
	inst := testInstitution()

	release, err := lv.Subscribe(context.Background(), inst, fn)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	now := time.Now()
	src.outgoing <- Snapshot{}
	src.incoming <- Snapshot{
		mkReferral("33333333-3333-3333-3333-333333333351", inst, now, false),
		mkReferral("33333333-3333-3333-3333-333333333352", inst, now, false),
	}
	v := waitForView(t, views)
	if len(v.Referrals) != 2 {
		t.Fatalf("first view has %d referrals, want 2", len(v.Referrals))
	}

	// A later incoming snapshot with one record replaces the set; nothing
	// from the previous emission lingers.
	src.incoming <- Snapshot{
		mkReferral("33333333-3333-3333-3333-333333333351", inst, now.Add(time.Second), false),
	}
	v = waitForView(t, views)
	if len(v.Referrals) != 1 {
		t.Fatalf("second view has %d referrals, want 1", len(v.Referrals))
	}
}

func TestLiveViewSortsNewestFirst(t *testing.T) {
	src := newFakeSource()
	lv := NewLiveView(src, zerolog.Nop())
	fn, views := collectViews(t)
	inst := testInstitution()

	release, err := lv.Subscribe(context.Background(), inst, fn)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	base := time.Now()
	src.outgoing <- Snapshot{
		mkReferral("33333333-3333-3333-3333-333333333361", inst, base, false),
	}
	src.incoming <- Snapshot{
		mkReferral("33333333-3333-3333-3333-333333333362", inst, base.Add(time.Hour), false),
	}

	v := waitForView(t, views)
	if len(v.Referrals) != 2 {
		t.Fatalf("view has %d referrals, want 2", len(v.Referrals))
	}
	if !v.Referrals[0].LastUpdatedAt.After(v.Referrals[1].LastUpdatedAt) {
		t.Error("view not sorted newest first")
	}
}

func TestLiveViewReleaseIsIdempotentAndReleasesBoth(t *testing.T) {
	src := newFakeSource()
	lv := NewLiveView(src, zerolog.Nop())

	release, err := lv.Subscribe(context.Background(), testInstitution(), func(View) {})
	if err != nil {
		t.Fatal(err)
	}

	release()
	release()
	release()

	out, in := src.cancels()
	if out != 1 || in != 1 {
		t.Errorf("cancel counts = (%d, %d), want (1, 1)", out, in)
	}
}
