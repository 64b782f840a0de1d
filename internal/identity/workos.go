package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

const profileFetchTimeout = 5 * time.Second

// Configure wires the WorkOS API key for user-management calls.
func Configure(apiKey string) {
	usermanagement.SetAPIKey(apiKey)
}

// Profile is the provider-side view of a user, fetched after the credential
// itself has been verified.
type Profile struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// ProfileFetcher retrieves the authoritative profile for a verified subject.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, subject string) (*Profile, error)
}

type WorkOSProfileFetcher struct{}

func (WorkOSProfileFetcher) FetchProfile(ctx context.Context, subject string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, profileFetchTimeout)
	defer cancel()

	u, err := usermanagement.GetUser(ctx, usermanagement.GetUserOpts{User: subject})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch WorkOS profile: %w", err)
	}

	return &Profile{
		Subject:   u.ID,
		Email:     u.Email,
		Name:      strings.TrimSpace(u.FirstName + " " + u.LastName),
		AvatarURL: u.ProfilePictureURL,
	}, nil
}
