package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
	"github.com/blagoySimandov/askgate/internal/usage"
	"github.com/google/uuid"
)

// Claimed is the identity payload the caller asserts alongside the external
// credential. It is never trusted until cross-checked against verification.
type Claimed struct {
	Subject   string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Bootstrapper creates a new user with its default subscription and usage
// rows in one transaction.
type Bootstrapper interface {
	CreateUserWithDefaults(ctx context.Context, user *models.User, sub *models.Subscription, rec *models.UsageRecord) error
}

type Service struct {
	verifier  TokenVerifier
	profiles  ProfileFetcher
	users     store.UserRepository
	bootstrap Bootstrapper
	freeLimit int
	log       *slog.Logger
}

func NewService(verifier TokenVerifier, profiles ProfileFetcher, users store.UserRepository, bootstrap Bootstrapper, freeLimit int, log *slog.Logger) *Service {
	return &Service{
		verifier:  verifier,
		profiles:  profiles,
		users:     users,
		bootstrap: bootstrap,
		freeLimit: freeLimit,
		log:       log,
	}
}

// BindIdentity verifies the external credential, cross-checks the claimed
// payload against it, and creates or updates the local user row.
func (s *Service) BindIdentity(ctx context.Context, externalToken string, claimed Claimed) (*models.User, bool, error) {
	if externalToken == "" {
		return nil, false, apperrors.Validation("access token is required")
	}
	if claimed.Subject == "" || claimed.Email == "" {
		return nil, false, apperrors.Validation("claimed identity must include id and email")
	}

	verified, err := s.verifier.Verify(ctx, externalToken)
	if err != nil {
		s.log.Info("auth attempt rejected", "reason", "credential_invalid")
		return nil, false, apperrors.CredentialInvalid(err)
	}

	if verified.Subject != claimed.Subject {
		s.log.Error("security event: identity spoof suspected",
			"claimed_sub", claimed.Subject,
			"verified_sub", verified.Subject,
		)
		return nil, false, apperrors.IdentitySpoofSuspected(claimed.Subject, verified.Subject)
	}

	user, created, err := s.bind(ctx, verified, claimed)
	if err != nil {
		s.log.Error("auth attempt failed", "sub", verified.Subject, "error", err)
		return nil, false, err
	}

	s.log.Info("auth attempt succeeded", "user_id", user.ID, "new_user", created)
	return user, created, nil
}

func (s *Service) bind(ctx context.Context, verified *Verified, claimed Claimed) (*models.User, bool, error) {
	profile := s.resolveProfile(ctx, verified, claimed)

	bySubject, err := s.users.GetByProviderSubject(ctx, verified.Subject)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, apperrors.Internal(err)
	}

	byEmail, err := s.users.GetByEmail(ctx, profile.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, apperrors.Internal(err)
	}

	// Subject takes precedence; a second row under the same email is a
	// data-integrity anomaly that must not be silently merged.
	if bySubject != nil && byEmail != nil && bySubject.ID != byEmail.ID {
		s.log.Error("identity anomaly: provider subject and email resolve to different users",
			"subject_user", bySubject.ID, "email_user", byEmail.ID)
	}

	existing := bySubject
	if existing == nil {
		existing = byEmail
	}

	if existing != nil {
		return s.refreshExisting(ctx, existing, verified.Subject, profile)
	}

	return s.createNew(ctx, verified.Subject, profile)
}

// resolveProfile prefers the provider's own profile data over the claimed
// payload, falling back to the claim when the fetch fails.
func (s *Service) resolveProfile(ctx context.Context, verified *Verified, claimed Claimed) *Profile {
	if s.profiles != nil {
		if p, err := s.profiles.FetchProfile(ctx, verified.Subject); err == nil {
			if p.Email == "" {
				p.Email = claimed.Email
			}
			return p
		}
	}
	email := verified.Email
	if email == "" {
		email = claimed.Email
	}
	return &Profile{
		Subject:   verified.Subject,
		Email:     email,
		Name:      claimed.Name,
		AvatarURL: claimed.AvatarURL,
	}
}

func (s *Service) refreshExisting(ctx context.Context, user *models.User, subject string, profile *Profile) (*models.User, bool, error) {
	now := time.Now()
	if profile.Name != "" {
		user.Name = profile.Name
	}
	if profile.AvatarURL != "" {
		user.AvatarURL = profile.AvatarURL
	}
	if user.ProviderSubject == nil {
		user.ProviderSubject = &subject
	}
	user.LastAuthAt = &now

	if err := s.users.Update(ctx, user); err != nil {
		return nil, false, apperrors.Internal(fmt.Errorf("failed to refresh user %s: %w", user.ID, err))
	}
	return user, false, nil
}

func (s *Service) createNew(ctx context.Context, subject string, profile *Profile) (*models.User, bool, error) {
	now := time.Now()
	user := &models.User{
		ID:              uuid.New().String(),
		Email:           profile.Email,
		Name:            profile.Name,
		ProviderSubject: &subject,
		AvatarURL:       profile.AvatarURL,
		Active:          true,
		LastAuthAt:      &now,
	}

	sub := &models.Subscription{
		ID:     uuid.New().String(),
		UserID: user.ID,
		Plan:   models.PlanFree,
		Status: models.StatusActive,
	}

	rec := &models.UsageRecord{
		UserID:         user.ID,
		Period:         usage.PeriodKey(now),
		QuestionsUsed:  0,
		QuestionsLimit: s.freeLimit,
		LastResetAt:    now,
	}

	if err := s.bootstrap.CreateUserWithDefaults(ctx, user, sub, rec); err != nil {
		return nil, false, apperrors.Internal(fmt.Errorf("failed to bootstrap user: %w", err))
	}
	return user, true, nil
}
