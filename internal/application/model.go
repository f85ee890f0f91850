package application

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusWaitingMerchant Status = "WAITING_MERCHANT"
	StatusMerchantTaken   Status = "MERCHANT_TAKEN"
	StatusWaitingPayment  Status = "WAITING_PAYMENT"
	StatusWaitingReceipt  Status = "WAITING_RECEIPT"
	StatusWaitingCheck    Status = "WAITING_CHECK"
	StatusConfirmed       Status = "CONFIRMED"
	StatusRejected        Status = "REJECTED"
	StatusExpired         Status = "EXPIRED"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{
	StatusWaitingMerchant,
	StatusMerchantTaken,
	StatusWaitingPayment,
	StatusWaitingReceipt,
	StatusWaitingCheck,
	StatusConfirmed,
	StatusRejected,
	StatusExpired,
}

// transitions holds the operator-driven edges. EXPIRED is reached only
// through the deadline check.
var transitions = map[Status][]Status{
	StatusWaitingMerchant: {StatusMerchantTaken, StatusWaitingPayment, StatusRejected},
	StatusMerchantTaken:   {StatusWaitingPayment, StatusRejected},
	StatusWaitingPayment:  {StatusWaitingReceipt, StatusRejected},
	StatusWaitingReceipt:  {StatusWaitingCheck, StatusRejected},
	StatusWaitingCheck:    {StatusConfirmed, StatusRejected},
}

// Valid reports whether s is a known state.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected || s == StatusExpired
}

// CanTransition reports whether an operator may move an application from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Pending returns every non-terminal state.
func Pending() []Status {
	out := make([]Status, 0, len(Statuses))
	for _, s := range Statuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatus converts raw into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", validationError("unknown status " + raw)
	}
	return s, nil
}

// Application is a user's payment request.
type Application struct {
	ID               int64
	OwnerID          int64
	BankID           int64
	Amount           int64 // minor units
	PaymentCode      string
	Status           Status
	RequisitesText   string
	RequisitesSentAt *time.Time
	ExpiresAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasRequisites reports whether payment details were issued.
func (a Application) HasRequisites() bool {
	return a.RequisitesText != ""
}

// Outcome tells callers which creation branch was taken.
type Outcome string

const (
	// OutcomeRequisitesIssued means the bank's requisites were issued at creation.
	OutcomeRequisitesIssued Outcome = "requisites_issued"
	// OutcomeQueued means the application awaits a merchant.
	OutcomeQueued Outcome = "queued"
)

// CreateInput captures a user's request.
type CreateInput struct {
	OwnerID   int64
	BankID    int64
	CountryID int64
	Amount    int64
}

// CreateResult is returned from Service.Create.
type CreateResult struct {
	Application Application
	Outcome     Outcome
	BankName    string
	CountryName string
}

// ListFilter pages through applications.
type ListFilter struct {
	Limit  int
	Offset int
	Status Status
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (f ListFilter) normalize() (ListFilter, error) {
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit < 1 || f.Limit > maxListLimit {
		return ListFilter{}, validationError("limit must be between 1 and 100")
	}
	if f.Offset < 0 {
		return ListFilter{}, validationError("offset must not be negative")
	}
	if f.Status != "" && !f.Status.Valid() {
		return ListFilter{}, validationError("unknown status " + string(f.Status))
	}
	return f, nil
}

var (
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown bank or application.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks access to another user's application.
	ErrForbidden = errors.New("access denied")
	// ErrTerminal marks a write against a finished application.
	ErrTerminal = errors.New("application is finished")
	// ErrTransition marks a move the state machine does not allow.
	ErrTransition = errors.New("transition not allowed")
	// ErrDuplicateCode is returned by stores when a payment code is taken.
	ErrDuplicateCode = errors.New("duplicate payment code")
)

// ValidationError describes which input was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationError(reason string) error {
	return &ValidationError{Reason: reason}
}
