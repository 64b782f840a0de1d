package identity

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
)

type stubVerifier struct {
	verified *Verified
	err      error
}

func (s *stubVerifier) Verify(context.Context, string) (*Verified, error) {
	return s.verified, s.err
}

type stubProfiles struct {
	profile *Profile
	err     error
}

func (s *stubProfiles) FetchProfile(context.Context, string) (*Profile, error) {
	return s.profile, s.err
}

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

type fakeBootstrapper struct {
	user *models.User
	sub  *models.Subscription
	rec  *models.UsageRecord
	repo *fakeUserRepo
}

func (f *fakeBootstrapper) CreateUserWithDefaults(_ context.Context, user *models.User, sub *models.Subscription, rec *models.UsageRecord) error {
	f.user, f.sub, f.rec = user, sub, rec
	if f.repo != nil {
		cp := *user
		f.repo.users[user.ID] = &cp
	}
	return nil
}

const testFreeLimit = 50

func TestBindIdentityCreatesNewUser(t *testing.T) {
	repo := newFakeUserRepo()
	boot := &fakeBootstrapper{repo: repo}
	svc := NewService(
		&stubVerifier{verified: &Verified{Subject: "workos|abc", Email: "new@example.com"}},
		&stubProfiles{err: errors.New("unavailable")},
		repo, boot, testFreeLimit, slog.Default(),
	)

	claimed := Claimed{Subject: "workos|abc", Email: "new@example.com", Name: "New User"}
	user, created, err := svc.BindIdentity(context.Background(), "token", claimed)
	if err != nil {
		t.Fatalf("BindIdentity() error = %v", err)
	}
	if !created {
		t.Error("BindIdentity() created = false, want true")
	}
	if user.Email != "new@example.com" || !user.Active {
		t.Errorf("BindIdentity() user = %+v", user)
	}

	if boot.sub == nil || boot.sub.Plan != models.PlanFree || boot.sub.Status != models.StatusActive {
		t.Errorf("bootstrap sub = %+v, want active free subscription", boot.sub)
	}
	if boot.rec == nil || boot.rec.QuestionsUsed != 0 || boot.rec.QuestionsLimit != testFreeLimit {
		t.Errorf("bootstrap usage = %+v, want 0/%d", boot.rec, testFreeLimit)
	}
}

func TestBindIdentityRefreshesExistingUser(t *testing.T) {
	subject := "workos|abc"
	existing := &models.User{
		ID:              "u1",
		Email:           "user@example.com",
		Name:            "Old Name",
		ProviderSubject: &subject,
		Active:          true,
	}
	repo := newFakeUserRepo(existing)
	boot := &fakeBootstrapper{}
	svc := NewService(
		&stubVerifier{verified: &Verified{Subject: subject, Email: "user@example.com"}},
		&stubProfiles{profile: &Profile{Subject: subject, Email: "user@example.com", Name: "Fresh Name"}},
		repo, boot, testFreeLimit, slog.Default(),
	)

	claimed := Claimed{Subject: subject, Email: "user@example.com"}
	user, created, err := svc.BindIdentity(context.Background(), "token", claimed)
	if err != nil {
		t.Fatalf("BindIdentity() error = %v", err)
	}
	if created {
		t.Error("BindIdentity() created = true, want false for existing user")
	}
	if user.ID != "u1" {
		t.Errorf("BindIdentity() user = %s, want u1", user.ID)
	}
	if user.Name != "Fresh Name" {
		t.Errorf("profile refresh skipped: name = %q", user.Name)
	}
	if user.LastAuthAt == nil {
		t.Error("LastAuthAt not stamped on re-auth")
	}
	if boot.user != nil {
		t.Error("bootstrap invoked for an existing user")
	}
}

func TestBindIdentityLinksSubjectByEmail(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "user@example.com", Active: true}
	repo := newFakeUserRepo(existing)
	svc := NewService(
		&stubVerifier{verified: &Verified{Subject: "workos|abc", Email: "user@example.com"}},
		&stubProfiles{err: errors.New("unavailable")},
		repo, &fakeBootstrapper{}, testFreeLimit, slog.Default(),
	)

	claimed := Claimed{Subject: "workos|abc", Email: "user@example.com"}
	user, created, err := svc.BindIdentity(context.Background(), "token", claimed)
	if err != nil {
		t.Fatalf("BindIdentity() error = %v", err)
	}
	if created {
		t.Error("email-matched user should not be recreated")
	}
	if user.ProviderSubject == nil || *user.ProviderSubject != "workos|abc" {
		t.Errorf("subject not linked to email-matched user: %+v", user.ProviderSubject)
	}
}

func TestBindIdentitySpoofedSubject(t *testing.T) {
	svc := NewService(
		&stubVerifier{verified: &Verified{Subject: "workos|real", Email: "real@example.com"}},
		nil, newFakeUserRepo(), &fakeBootstrapper{}, testFreeLimit, slog.Default(),
	)

	claimed := Claimed{Subject: "workos|victim", Email: "victim@example.com"}
	_, _, err := svc.BindIdentity(context.Background(), "token", claimed)
	if !apperrors.IsCode(err, apperrors.CodeIdentitySpoof) {
		t.Fatalf("BindIdentity() error = %v, want IDENTITY_SPOOF", err)
	}
}

func TestBindIdentityInvalidCredential(t *testing.T) {
	svc := NewService(
		&stubVerifier{err: ErrInvalidToken},
		nil, newFakeUserRepo(), &fakeBootstrapper{}, testFreeLimit, slog.Default(),
	)

	claimed := Claimed{Subject: "workos|abc", Email: "user@example.com"}
	_, _, err := svc.BindIdentity(context.Background(), "bad-token", claimed)
	if !apperrors.IsCode(err, apperrors.CodeAuthFailed) {
		t.Fatalf("BindIdentity() error = %v, want AUTH_FAILED", err)
	}
}

func TestBindIdentityRejectsEmptyInputs(t *testing.T) {
	svc := NewService(&stubVerifier{}, nil, newFakeUserRepo(), &fakeBootstrapper{}, testFreeLimit, slog.Default())

	tests := []struct {
		name    string
		token   string
		claimed Claimed
	}{
		{"missing token", "", Claimed{Subject: "s", Email: "e@example.com"}},
		{"missing subject", "token", Claimed{Email: "e@example.com"}},
		{"missing email", "token", Claimed{Subject: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.BindIdentity(context.Background(), tt.token, tt.claimed)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("BindIdentity() error = %v, want VALIDATION_ERROR", err)
			}
		})
	}
}
