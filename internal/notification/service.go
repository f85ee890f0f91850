package notification

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nightlab/exchange/internal/clock"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service stores inbox records and forwards them to a Notifier.
type Service struct {
	repo     Repository
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// NewService constructs a notification service. notifier may be nil.
func NewService(repo Repository, notifier Notifier, c clock.Clock, logger *slog.Logger) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{repo: repo, notifier: notifier, clock: c, logger: logger}
}

// Publish stores rec in the user's inbox and attempts outbound delivery.
// Delivery failures are logged, not returned.
func (s *Service) Publish(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		return err
	}
	if s.notifier == nil {
		return nil
	}
	err = s.notifier.Send(ctx, Message{
		Kind:        stored.Kind,
		Destination: strconv.FormatInt(stored.UserID, 10),
		Body:        stored.Message,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("notification delivery failed",
			slog.Int64("notification_id", stored.ID),
			slog.Int64("user_id", stored.UserID),
			slog.Any("error", err),
		)
	}
	return nil
}

// List returns the newest records for userID. limit is clamped to 1..100.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// UnreadCount returns how many records userID has not read.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead flags a record as read. It reports false for records the user does not own.
func (s *Service) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	return s.repo.MarkRead(ctx, id, userID)
}
