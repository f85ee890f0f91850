package application

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/nightlab/exchange/internal/catalog"
	"github.com/nightlab/exchange/internal/ttl"
)

const (
	paymentCodeLength   = 6
	paymentCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts     = 5
	// minRequisitesLength is the shortest requisites text treated as configured.
	minRequisitesLength = 6
)

// placeholderPhrases mark bank requisites that were never filled in.
var placeholderPhrases = []string{"не заданы", "not configured"}

// Events receives lifecycle changes the owner should hear about.
type Events interface {
	RequisitesAssigned(ctx context.Context, app Application)
	StatusChanged(ctx context.Context, app Application, from Status)
	Expired(ctx context.Context, app Application)
}

// Observer records lifecycle metrics.
type Observer interface {
	ApplicationCreated(outcome Outcome)
	ApplicationsExpired(n int)
}

// Service owns the application state machine.
type Service struct {
	repo     Repository
	banks    catalog.Repository
	policy   ttl.Policy
	events   Events
	observer Observer
	logger   *slog.Logger
	newCode  func() (string, error)
}

// NewService builds the lifecycle engine. events, observer and logger may be nil.
func NewService(repo Repository, banks catalog.Repository, policy ttl.Policy, events Events, observer Observer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		banks:    banks,
		policy:   policy,
		events:   events,
		observer: observer,
		logger:   logger,
		newCode:  generatePaymentCode,
	}
}

// Create validates input, stores a new application and, when the bank has
// requisites configured, issues them in the same write.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if input.Amount <= 0 {
		return CreateResult{}, validationError("amount must be positive")
	}

	bank, err := s.banks.GetBank(ctx, input.BankID)
	if err != nil {
		if errors.Is(err, catalog.ErrBankNotFound) {
			return CreateResult{}, fmt.Errorf("bank %d: %w", input.BankID, ErrNotFound)
		}
		return CreateResult{}, err
	}
	if !bank.IsActive {
		return CreateResult{}, fmt.Errorf("bank %d inactive: %w", input.BankID, ErrNotFound)
	}

	countryName := "Unknown"
	country, err := s.banks.GetCountry(ctx, input.CountryID)
	switch {
	case err == nil:
		countryName = country.Name
	case !errors.Is(err, catalog.ErrCountryNotFound):
		return CreateResult{}, err
	}

	now := s.policy.Now()
	app := Application{
		OwnerID:   input.OwnerID,
		BankID:    bank.ID,
		Amount:    input.Amount,
		Status:    StatusWaitingMerchant,
		CreatedAt: now,
	}
	outcome := OutcomeQueued
	if requisites, ok := usableRequisites(bank.RequisitesText); ok {
		expiresAt := s.policy.NextDeadline(now)
		sentAt := now
		app.RequisitesText = requisites
		app.RequisitesSentAt = &sentAt
		app.ExpiresAt = &expiresAt
		outcome = OutcomeRequisitesIssued
	}

	created, err := s.insert(ctx, app)
	if err != nil {
		return CreateResult{}, err
	}

	if s.observer != nil {
		s.observer.ApplicationCreated(outcome)
	}
	if s.logger != nil {
		s.logger.Info("application created",
			slog.Int64("application_id", created.ID),
			slog.Int64("owner_id", created.OwnerID),
			slog.Int64("bank_id", created.BankID),
			slog.String("outcome", string(outcome)),
		)
	}

	return CreateResult{Application: created, Outcome: outcome, BankName: bank.DisplayName, CountryName: countryName}, nil
}

func (s *Service) insert(ctx context.Context, app Application) (Application, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return Application{}, fmt.Errorf("generate payment code: %w", err)
		}
		app.PaymentCode = code
		created, err := s.repo.Create(ctx, app)
		if errors.Is(err, ErrDuplicateCode) {
			continue
		}
		return created, err
	}
	return Application{}, fmt.Errorf("no free payment code after %d attempts: %w", maxCodeAttempts, ErrDuplicateCode)
}

// CheckExpiry moves app to EXPIRED when its deadline passed and returns the
// stored state. It is safe to call concurrently for the same application.
func (s *Service) CheckExpiry(ctx context.Context, app Application) (Application, error) {
	now := s.policy.Now()
	if app.Status.Terminal() || !s.policy.IsExpired(app.ExpiresAt, now) {
		return app, nil
	}
	changed, err := s.repo.Expire(ctx, app.ID, now)
	if err != nil {
		return Application{}, err
	}
	fresh, err := s.repo.Get(ctx, app.ID)
	if err != nil {
		return Application{}, err
	}
	if changed {
		s.expired(ctx, fresh)
	}
	return fresh, nil
}

// Get returns one of the owner's applications.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (Application, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.OwnerID != ownerID {
		return Application{}, ErrForbidden
	}
	return s.CheckExpiry(ctx, app)
}

// List pages through the owner's applications, newest first.
func (s *Service) List(ctx context.Context, ownerID int64, filter ListFilter) ([]Application, error) {
	filter, err := filter.normalize()
	if err != nil {
		return nil, err
	}
	apps, err := s.repo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, apps, filter.Status)
}

// Queue lists applications awaiting operators in the given statuses, every
// pending status when none are given.
func (s *Service) Queue(ctx context.Context, statuses []Status, filter ListFilter) ([]Application, error) {
	filter, err := filter.normalize()
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = Pending()
	}
	for _, st := range statuses {
		if st.Terminal() {
			return nil, validationError("queue only holds pending statuses")
		}
	}
	apps, err := s.repo.ListByStatus(ctx, statuses, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	fresh, err := s.refresh(ctx, apps, "")
	if err != nil {
		return nil, err
	}
	out := fresh[:0]
	for _, app := range fresh {
		if !app.Status.Terminal() {
			out = append(out, app)
		}
	}
	return out, nil
}

// refresh applies CheckExpiry to each item and drops those that no longer match status.
func (s *Service) refresh(ctx context.Context, apps []Application, status Status) ([]Application, error) {
	out := make([]Application, 0, len(apps))
	for _, app := range apps {
		fresh, err := s.CheckExpiry(ctx, app)
		if err != nil {
			return nil, err
		}
		if status != "" && fresh.Status != status {
			continue
		}
		out = append(out, fresh)
	}
	return out, nil
}

// Advance performs an operator transition.
func (s *Service) Advance(ctx context.Context, id int64, to Status) (Application, error) {
	app, err := s.current(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !app.Status.CanTransition(to) {
		return Application{}, fmt.Errorf("%s to %s: %w", app.Status, to, ErrTransition)
	}
	if to == StatusWaitingPayment && !app.HasRequisites() {
		return Application{}, fmt.Errorf("requisites must be assigned first: %w", ErrTransition)
	}

	changed, err := s.repo.Transition(ctx, id, app.Status, to, s.policy.Now())
	if err != nil {
		return Application{}, err
	}
	if !changed {
		return Application{}, s.conflict(ctx, id)
	}

	fresh, err := s.repo.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if s.events != nil {
		s.events.StatusChanged(ctx, fresh, app.Status)
	}
	return fresh, nil
}

// AssignRequisites issues requisites manually and starts the expiry timer.
func (s *Service) AssignRequisites(ctx context.Context, id int64, text string) (Application, error) {
	requisites, ok := usableRequisites(text)
	if !ok {
		return Application{}, validationError("requisites are empty or a placeholder")
	}
	app, err := s.current(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.HasRequisites() || (app.Status != StatusWaitingMerchant && app.Status != StatusMerchantTaken) {
		return Application{}, fmt.Errorf("requisites already issued or status %s: %w", app.Status, ErrTransition)
	}

	now := s.policy.Now()
	changed, err := s.repo.SetRequisites(ctx, id, RequisitesUpdate{
		Text:      requisites,
		SentAt:    now,
		ExpiresAt: s.policy.NextDeadline(now),
		From:      app.Status,
		To:        StatusWaitingPayment,
	})
	if err != nil {
		return Application{}, err
	}
	if !changed {
		return Application{}, s.conflict(ctx, id)
	}

	fresh, err := s.repo.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if s.events != nil {
		s.events.RequisitesAssigned(ctx, fresh)
	}
	return fresh, nil
}

// ExpireDue expires every overdue application and returns how many changed.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireDue(ctx, s.policy.Now())
	if err != nil {
		return 0, err
	}
	for _, app := range expired {
		s.expired(ctx, app)
	}
	return len(expired), nil
}

// current loads id with its deadline applied and rejects finished applications.
func (s *Service) current(ctx context.Context, id int64) (Application, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	app, err = s.CheckExpiry(ctx, app)
	if err != nil {
		return Application{}, err
	}
	if app.Status.Terminal() {
		return Application{}, fmt.Errorf("application %d is %s: %w", id, app.Status, ErrTerminal)
	}
	return app, nil
}

// conflict explains why a conditional write did not apply.
func (s *Service) conflict(ctx context.Context, id int64) error {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if fresh, err := s.CheckExpiry(ctx, app); err == nil && fresh.Status.Terminal() {
		return fmt.Errorf("application %d is %s: %w", id, fresh.Status, ErrTerminal)
	}
	return fmt.Errorf("application %d changed concurrently: %w", id, ErrTransition)
}

func (s *Service) expired(ctx context.Context, app Application) {
	if s.observer != nil {
		s.observer.ApplicationsExpired(1)
	}
	if s.logger != nil {
		s.logger.Info("application expired", slog.Int64("application_id", app.ID), slog.Int64("owner_id", app.OwnerID))
	}
	if s.events != nil {
		s.events.Expired(ctx, app)
	}
}

// usableRequisites trims text and reports whether it is real payment data.
func usableRequisites(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minRequisitesLength {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			return "", false
		}
	}
	return trimmed, true
}

func generatePaymentCode() (string, error) {
	max := big.NewInt(int64(len(paymentCodeAlphabet)))
	var b strings.Builder
	b.Grow(paymentCodeLength)
	for i := 0; i < paymentCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(paymentCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
