package identity

import (
    "context"
    "fmt"

    "github.com/nightlab/exchange/internal/clock"
    "github.com/nightlab/exchange/internal/initdata"
)

// Service manages users created from authenticated launch payloads.
type Service struct {
    repo  Repository
    clock clock.Clock
}

// NewService creates a new identity service.
func NewService(repo Repository, c clock.Clock) *Service {
    if c == nil {
        c = clock.System{}
    }
    return &Service{repo: repo, clock: c}
}

// EnsureUser creates the user on first sight and returns the stored record.
func (s *Service) EnsureUser(ctx context.Context, id initdata.Identity) (User, error) {
    username := id.Username
    if username == "" {
        username = fmt.Sprintf("user_%d", id.ExternalID)
    }

    user := User{
        ExternalID:   id.ExternalID,
        Username:     username,
        Role:         RoleUser,
        ReferralCode: fmt.Sprintf("REF%d", id.ExternalID),
        CreatedAt:    s.clock.Now(),
    }
    if err := s.repo.Upsert(ctx, user); err != nil {
        return User{}, err
    }
    return s.repo.FindByID(ctx, id.ExternalID)
}

// Get returns a stored user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
    return s.repo.FindByID(ctx, id)
}
