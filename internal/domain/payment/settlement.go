package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// SettlementResult is the observable outcome of a settlement attempt.
type SettlementResult int

const (
	// ResultSettled means this call performed the settlement: the record
	// moved to completed, enrollments were granted, and the cart cleared.
	ResultSettled SettlementResult = iota + 1

	// ResultAlreadySettled means the payment was settled before or during
	// this call. It is success-equivalent: callers retrying a settled
	// payment get a clean answer, not an error.
	ResultAlreadySettled

	// ResultFailed means the gateway reported the charge as not successful
	// and the record is now failed.
	ResultFailed
)

// Message returns the client-facing description of the outcome.
func (r SettlementResult) Message() string {
	switch r {
	case ResultSettled:
		return "payment verified successfully"
	case ResultAlreadySettled:
		return "payment already processed"
	case ResultFailed:
		return "payment verification failed"
	default:
		return "unknown settlement result"
	}
}

// VerifyAndSettle confirms a payment against the gateway and, on success,
// converts it into enrollments exactly once.
//
// It may be invoked concurrently from webhook delivery and client polling,
// and either trigger may fire repeatedly. The triggers are only a signal to
// check: the gateway's verify answer is the sole proof of payment. All
// terminal writes go through conditional status updates, so whichever caller
// wins the pending -> completed transition performs the side effects and
// every other caller converges on ResultAlreadySettled.
func (s *Service) VerifyAndSettle(ctx context.Context, reference string) (SettlementResult, error) {
	rec, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return 0, err
	}

	switch rec.Status {
	case StatusCompleted:
		return ResultAlreadySettled, nil
	case StatusFailed:
		return 0, ErrAlreadyFailed
	}

	ok, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		// Unknown outcome (timeout, gateway 5xx). Leave the record pending
		// so a later attempt can settle it.
		return 0, errors.Wrap(err, "verify transaction")
	}

	if !ok {
		return s.recordFailure(ctx, reference)
	}

	applied, err := s.uow.Settle(ctx, rec)
	if err != nil {
		return 0, errors.Wrap(err, "settle")
	}
	if !applied {
		return ResultAlreadySettled, nil
	}
	return ResultSettled, nil
}

// RecordFailure marks a pending payment as failed, typically on a
// charge.failed webhook. Already-terminal records are left untouched.
func (s *Service) RecordFailure(ctx context.Context, reference string) error {
	_, err := s.recordFailure(ctx, reference)
	return err
}

// recordFailure applies the pending -> failed transition with the same
// conditional-update discipline as success settlement. Losing the race to a
// concurrent completion resolves as ResultAlreadySettled, not an error.
func (s *Service) recordFailure(ctx context.Context, reference string) (SettlementResult, error) {
	applied, err := s.payments.MarkFailedIfPending(ctx, reference)
	if err != nil {
		return 0, errors.Wrap(err, "mark failed")
	}
	if applied {
		return ResultFailed, nil
	}

	rec, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return 0, err
	}
	if rec.Status == StatusCompleted {
		return ResultAlreadySettled, nil
	}
	return ResultFailed, nil
}
