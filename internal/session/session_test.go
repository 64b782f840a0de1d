package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
)

type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserRepo) GetByProviderSubject(_ context.Context, subject string) (*models.User, error) {
	for _, u := range f.users {
		if u.ProviderSubject != nil && *u.ProviderSubject == subject {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserRepo) GetByStripeCustomerID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) SetActive(_ context.Context, userID string, active bool) error {
	if u, ok := f.users[userID]; ok {
		u.Active = active
	}
	return nil
}

func (f *fakeUserRepo) UpdateStripeCustomerID(_ context.Context, userID, stripeCustomerID string) error {
	if u, ok := f.users[userID]; ok {
		u.StripeCustomerID = &stripeCustomerID
	}
	return nil
}

func activeUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", Active: true}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour, newFakeUserRepo(activeUser("u1")))

	token, err := m.Issue("u1", ClassAccess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	user, err := m.Verify(context.Background(), token, ClassAccess)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("Verify() user = %s, want u1", user.ID)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour, newFakeUserRepo(activeUser("u1")))

	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	token, err := m.Issue("u1", ClassAccess)
	if err != nil {
		t.Fatal(err)
	}

	m.now = time.Now
	_, err = m.Verify(context.Background(), token, ClassAccess)
	if !apperrors.IsCode(err, apperrors.CodeSessionExpired) {
		t.Fatalf("Verify() error = %v, want SESSION_EXPIRED", err)
	}
}

func TestVerifyRejectsWrongClass(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour, newFakeUserRepo(activeUser("u1")))

	refresh, err := m.Issue("u1", ClassRefresh)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Verify(context.Background(), refresh, ClassAccess)
	if !apperrors.IsCode(err, apperrors.CodeSessionInvalid) {
		t.Fatalf("Verify() error = %v, want SESSION_INVALID", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour, newFakeUserRepo(activeUser("u1")))

	token, err := m.Issue("u1", ClassAccess)
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + parts[2] + "AAAA"

	_, err = m.Verify(context.Background(), tampered, ClassAccess)
	if !apperrors.IsCode(err, apperrors.CodeSessionInvalid) {
		t.Fatalf("Verify() error = %v, want SESSION_INVALID", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	other := NewManager("other-secret", time.Hour, 24*time.Hour, newFakeUserRepo(activeUser("u1")))
	token, err := other.Issue("u1", ClassAccess)
	if err != nil {
		t.Fatal(err)
	}

	m := NewManager("test-secret", time.Hour, 24*time.Hour, newFakeUserRepo(activeUser("u1")))
	_, err = m.Verify(context.Background(), token, ClassAccess)
	if !apperrors.IsCode(err, apperrors.CodeSessionInvalid) {
		t.Fatalf("Verify() error = %v, want SESSION_INVALID", err)
	}
}

func TestVerifyDeactivatedAccount(t *testing.T) {
	repo := newFakeUserRepo(activeUser("u1"))
	m := NewManager("test-secret", time.Hour, 24*time.Hour, repo)

	token, err := m.Issue("u1", ClassAccess)
	if err != nil {
		t.Fatal(err)
	}

	// Deactivation after issuance must invalidate the outstanding session.
	repo.SetActive(context.Background(), "u1", false)

	_, err = m.Verify(context.Background(), token, ClassAccess)
	if !apperrors.IsCode(err, apperrors.CodeAccountInactive) {
		t.Fatalf("Verify() error = %v, want ACCOUNT_INACTIVE", err)
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour, newFakeUserRepo())

	token, err := m.Issue("ghost", ClassAccess)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Verify(context.Background(), token, ClassAccess)
	if !apperrors.IsCode(err, apperrors.CodeSessionInvalid) {
		t.Fatalf("Verify() error = %v, want SESSION_INVALID", err)
	}
}
