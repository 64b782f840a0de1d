package usage

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
)

type fakeUsageRepo struct {
	mu   sync.Mutex
	recs map[string]*models.UsageRecord
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{recs: make(map[string]*models.UsageRecord)}
}

func key(userID, period string) string { return userID + "|" + period }

func (f *fakeUsageRepo) Get(_ context.Context, userID, period string) (*models.UsageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[key(userID, period)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeUsageRepo) CreateIfAbsent(_ context.Context, rec *models.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(rec.UserID, rec.Period)
	if _, ok := f.recs[k]; ok {
		return nil
	}
	cp := *rec
	f.recs[k] = &cp
	return nil
}

func (f *fakeUsageRepo) IncrementIfUnderLimit(_ context.Context, userID, period string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[key(userID, period)]
	if !ok || rec.QuestionsUsed >= rec.QuestionsLimit {
		return false, nil
	}
	rec.QuestionsUsed++
	return true, nil
}

func (f *fakeUsageRepo) UpdateLimit(_ context.Context, userID, period string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recs[key(userID, period)]; ok {
		rec.QuestionsLimit = limit
	}
	return nil
}

type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[string]*models.Subscription
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: make(map[string]*models.Subscription)}
}

func (f *fakeSubRepo) GetGoverning(_ context.Context, userID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[userID]
	if !ok || !sub.Status.Governing() {
		return nil, store.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubRepo) GetByStripeSubscriptionID(_ context.Context, id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == id {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeSubRepo) Create(_ context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sub
	f.subs[sub.UserID] = &cp
	return nil
}

func (f *fakeSubRepo) Update(_ context.Context, sub *models.Subscription) error {
	return f.Create(context.Background(), sub)
}

func (f *fakeSubRepo) ListGoverning(_ context.Context) ([]*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range f.subs {
		if sub.Status.Governing() {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

var testLimits = Limits{Free: 50, Premium: 1000}

func newTestService(usageRepo *fakeUsageRepo, subs *fakeSubRepo) *Service {
	s := NewService(usageRepo, subs, testLimits, "/upgrade", slog.Default())
	s.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestRecordCreatesRecordLazily(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	s := newTestService(usageRepo, newFakeSubRepo())

	status, err := s.Record(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if status.QuestionsUsed != 1 || status.QuestionsLimit != 50 {
		t.Errorf("Record() = used %d limit %d, want 1/50", status.QuestionsUsed, status.QuestionsLimit)
	}
	if !status.CanAskMore {
		t.Error("Record() canAskMore = false, want true")
	}
}

func TestRecordUsesGoverningPlanLimit(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	subs := newFakeSubRepo()
	subs.Create(context.Background(), &models.Subscription{
		UserID: "u1",
		Plan:   models.PlanPremium,
		Status: models.StatusActive,
	})
	s := newTestService(usageRepo, subs)

	status, err := s.Record(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if status.QuestionsLimit != 1000 {
		t.Errorf("Record() limit = %d, want 1000", status.QuestionsLimit)
	}
	if status.Plan != models.PlanPremium {
		t.Errorf("Record() plan = %s, want premium", status.Plan)
	}
}

func TestRecordAtLimitBoundary(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	s := newTestService(usageRepo, newFakeSubRepo())

	usageRepo.CreateIfAbsent(context.Background(), &models.UsageRecord{
		UserID: "u1", Period: "2026-05", QuestionsUsed: 49, QuestionsLimit: 50,
	})

	status, err := s.Record(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first Record() error = %v", err)
	}
	if status.QuestionsUsed != 50 || status.CanAskMore {
		t.Errorf("first Record() = used %d canAskMore %v, want 50/false", status.QuestionsUsed, status.CanAskMore)
	}

	_, err = s.Record(context.Background(), "u1")
	if !apperrors.IsCode(err, apperrors.CodeUsageLimit) {
		t.Fatalf("second Record() error = %v, want USAGE_LIMIT_EXCEEDED", err)
	}

	rec, _ := usageRepo.Get(context.Background(), "u1", "2026-05")
	if rec.QuestionsUsed != 50 {
		t.Errorf("rejected call incremented usage: used = %d, want 50", rec.QuestionsUsed)
	}
}

func TestRecordConcurrentNeverOvershoots(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	s := newTestService(usageRepo, newFakeSubRepo())

	usageRepo.CreateIfAbsent(context.Background(), &models.UsageRecord{
		UserID: "u1", Period: "2026-05", QuestionsUsed: 49, QuestionsLimit: 50,
	})

	const callers = 8
	var wg sync.WaitGroup
	successes := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Record(context.Background(), "u1"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	var count int
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("concurrent Record() successes = %d, want exactly 1", count)
	}

	rec, _ := usageRepo.Get(context.Background(), "u1", "2026-05")
	if rec.QuestionsUsed != 50 {
		t.Errorf("consumed = %d, want 50 (never above limit)", rec.QuestionsUsed)
	}
}

func TestRefreshLimitPreservesConsumed(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	s := newTestService(usageRepo, newFakeSubRepo())

	usageRepo.CreateIfAbsent(context.Background(), &models.UsageRecord{
		UserID: "u1", Period: "2026-05", QuestionsUsed: 30, QuestionsLimit: 1000,
	})

	if err := s.RefreshLimit(context.Background(), "u1", models.PlanFree); err != nil {
		t.Fatalf("RefreshLimit() error = %v", err)
	}

	rec, _ := usageRepo.Get(context.Background(), "u1", "2026-05")
	if rec.QuestionsLimit != 50 {
		t.Errorf("limit = %d, want 50", rec.QuestionsLimit)
	}
	if rec.QuestionsUsed != 30 {
		t.Errorf("consumed = %d, want 30 (preserved across tier change)", rec.QuestionsUsed)
	}
}

func TestResetAllUsageIdempotent(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	subs := newFakeSubRepo()
	subs.Create(context.Background(), &models.Subscription{
		UserID: "u1", Plan: models.PlanPremium, Status: models.StatusActive,
	})
	subs.Create(context.Background(), &models.Subscription{
		UserID: "u2", Plan: models.PlanFree, Status: models.StatusActive,
	})
	s := newTestService(usageRepo, subs)

	if err := s.ResetAllUsage(context.Background(), "2026-06"); err != nil {
		t.Fatalf("ResetAllUsage() error = %v", err)
	}

	if _, err := usageRepo.IncrementIfUnderLimit(context.Background(), "u1", "2026-06"); err != nil {
		t.Fatal(err)
	}

	if err := s.ResetAllUsage(context.Background(), "2026-06"); err != nil {
		t.Fatalf("repeat ResetAllUsage() error = %v", err)
	}

	rec, _ := usageRepo.Get(context.Background(), "u1", "2026-06")
	if rec.QuestionsUsed != 1 {
		t.Errorf("re-run reset altered consumed count: got %d, want 1", rec.QuestionsUsed)
	}
	if rec.QuestionsLimit != 1000 {
		t.Errorf("premium reset limit = %d, want 1000", rec.QuestionsLimit)
	}

	rec2, _ := usageRepo.Get(context.Background(), "u2", "2026-06")
	if rec2.QuestionsLimit != 50 {
		t.Errorf("free reset limit = %d, want 50", rec2.QuestionsLimit)
	}
}

func TestStatusForWithoutRecord(t *testing.T) {
	s := newTestService(newFakeUsageRepo(), newFakeSubRepo())

	status, err := s.StatusFor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("StatusFor() error = %v", err)
	}
	if status.QuestionsUsed != 0 || status.QuestionsLimit != 50 || !status.CanAskMore {
		t.Errorf("StatusFor() = %+v, want 0/50 canAskMore", status)
	}
	wantReset := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if !status.NextReset.Equal(wantReset) {
		t.Errorf("NextReset = %v, want %v", status.NextReset, wantReset)
	}
}
