package provision

import (
	"errors"
	"fmt"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

// ErrOrderAcceptedNoID marks the fatal provider inconsistency of a
// successful order submission without an order number. The charge may have
// happened, so the attempt must not be retried automatically.
var ErrOrderAcceptedNoID = errors.New("order accepted but no order number returned")

// ErrUnknownProfile is returned when an operation references an ICCID that
// is not in the ledger (or not owned by the acting user).
var ErrUnknownProfile = errors.New("profile not found")

// ErrMissingReference marks a ledger row without the per-profile
// transaction reference required for cancel/top-up/usage calls.
var ErrMissingReference = errors.New("profile has no transaction reference")

// InsufficientBalanceError is the pre-flight refusal: the prepaid balance
// does not cover the required spend. No remote order exists when this is
// returned.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
}

// UpstreamError is an explicit provider refusal or a normalized transport
// fault. Message carries the provider's wording verbatim.
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("upstream: %s", e.Message)
	}
	return fmt.Sprintf("upstream: %s (code %s)", e.Message, e.Code)
}

// AllocationTimeoutError is returned when no profile was allocated within
// the poll budget. StillProcessing distinguishes the provider's known
// "still allocating" answer from a generic failure so callers can word the
// message accordingly.
type AllocationTimeoutError struct {
	OrderNo         string
	StillProcessing bool
}

func (e *AllocationTimeoutError) Error() string {
	if e.StillProcessing {
		return fmt.Sprintf("order %s is still being allocated by the provider", e.OrderNo)
	}
	return fmt.Sprintf("no profiles allocated for order %s within the poll budget", e.OrderNo)
}

// PersistenceError is a local ledger write failure after the remote charge
// already happened. It is surfaced and never retried automatically, because
// resubmitting the order risks a double charge.
type PersistenceError struct {
	OrderNo string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order %s charged but ledger write failed: %v", e.OrderNo, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotEligibleError is the normal negative result of a lifecycle operation
// attempted outside its legal state. No upstream call was made.
type NotEligibleError struct {
	Operation string
	State     CoarseState
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s not allowed in state %q", e.Operation, e.State)
}

// upstream normalizes any provider-client failure into an UpstreamError.
// Nothing from the transport layer escapes raw.
func upstream(err error) error {
	var apiErr *esimapi.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return &UpstreamError{Message: err.Error()}
}
