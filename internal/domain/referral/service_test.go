package referral

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	mu            sync.Mutex
	referrals     map[uuid.UUID]*Referral
	statusWrites  int
	markReadErr   error
	markReadCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{referrals: make(map[uuid.UUID]*Referral)}
}

func (m *mockRepo) Create(_ context.Context, r *Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.LastUpdatedAt = time.Now()
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, r *Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.referrals[r.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	m.statusWrites++
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

func (m *mockRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markReadCalls++
	if m.markReadErr != nil {
		return m.markReadErr
	}
	r, ok := m.referrals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.IsRead = true
	return nil
}

func (m *mockRepo) ListBySender(_ context.Context, institutionID uuid.UUID) ([]*Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Referral
	for _, r := range m.referrals {
		if r.FromInstitutionID == institutionID {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockRepo) ListByRecipient(_ context.Context, institutionID uuid.UUID) ([]*Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Referral
	for _, r := range m.referrals {
		if r.ToInstitutionID == institutionID {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockRepo) CountUnread(_ context.Context, institutionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.referrals {
		if r.ToInstitutionID == institutionID && !r.IsRead {
			count++
		}
	}
	return count, nil
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, zerolog.Nop())
}

func seedReferral(t *testing.T, repo *mockRepo, svc *Service) *Referral {
	t.Helper()
	r := newTestReferral(StatusPending)
	if err := svc.Create(context.Background(), r, senderActor()); err != nil {
		t.Fatalf("seed referral: %v", err)
	}
	return r
}

func TestServiceCreateValidation(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Referral)
	}{
		{"missing recipient", func(r *Referral) { r.ToInstitutionID = uuid.Nil }},
		{"missing sender", func(r *Referral) { r.FromInstitutionID = uuid.Nil }},
		{"same institution", func(r *Referral) { r.ToInstitutionID = r.FromInstitutionID }},
		{"blank patient name", func(r *Referral) { r.PatientName = "  " }},
		{"unknown priority", func(r *Referral) { r.Priority = "Urgent" }},
	}

	for _, tc := range cases {
		r := newTestReferral(StatusPending)
		tc.mutate(r)
		err := svc.Create(ctx, r, senderActor())
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestServiceCreateDefaults(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	r := newTestReferral(StatusPending)
	r.Status = StatusAccepted // caller-supplied status must be ignored
	r.Priority = ""
	r.IsRead = true
	if err := svc.Create(context.Background(), r, senderActor()); err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusPending {
		t.Errorf("status = %q, want Pending", r.Status)
	}
	if r.Priority != PriorityMedium {
		t.Errorf("priority = %q, want Medium", r.Priority)
	}
	if r.IsRead {
		t.Error("new referral must start unread")
	}
	if r.ReferredBy != "Dr. Devi" || r.ReferredByRole != auth.RoleDoctor {
		t.Errorf("referredBy = %q/%q", r.ReferredBy, r.ReferredByRole)
	}
}

func TestServiceAcceptPersistsStatusAndTrailTogether(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	seeded := seedReferral(t, repo, svc)

	updated, err := svc.Accept(context.Background(), seeded.ID, recipientActor())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Errorf("status = %q", updated.Status)
	}
	if repo.statusWrites != 1 {
		t.Errorf("status writes = %d, want exactly 1", repo.statusWrites)
	}

	stored, err := svc.Get(context.Background(), seeded.ID)
	if err != nil {
		t.Fatal(err)
	}
	last, ok := stored.StatusUpdates.Last()
	if !ok || last.Status != stored.Status {
		t.Error("persisted status diverged from trail")
	}
}

func TestServiceTransitionFailuresDoNotWrite(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	seeded := seedReferral(t, repo, svc)

	if _, err := svc.Reject(context.Background(), seeded.ID, recipientActor(), ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if repo.statusWrites != 0 {
		t.Errorf("failed transition wrote to the store (%d writes)", repo.statusWrites)
	}
}

func TestServiceTransitionNotFound(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Accept(context.Background(), uuid.New(), recipientActor())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServiceMarkReadSwallowsFailure(t *testing.T) {
	repo := newMockRepo()
	repo.markReadErr = errors.New("network interrupted")
	svc := newTestService(repo)

	// Must not panic or surface the error.
	svc.MarkRead(context.Background(), uuid.New(), recipientActor())
	if repo.markReadCalls != 1 {
		t.Errorf("markReadCalls = %d, want 1", repo.markReadCalls)
	}
}

func TestServiceNotifiesBothInstitutionsOnTransition(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	notifier := NewChangeNotifier()
	svc.SetChangeNotifier(notifier)

	seeded := seedReferral(t, repo, svc)

	fromCh, unsubFrom := notifier.subscribe(seeded.FromInstitutionID)
	defer unsubFrom()
	toCh, unsubTo := notifier.subscribe(seeded.ToInstitutionID)
	defer unsubTo()

	if _, err := svc.Accept(context.Background(), seeded.ID, recipientActor()); err != nil {
		t.Fatal(err)
	}

	for name, ch := range map[string]chan struct{}{"sender": fromCh, "recipient": toCh} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Errorf("%s stream was not nudged", name)
		}
	}
}
