package businessflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
)

const defaultFailureReason = "payment was not completed"

// AttemptTransition is the terminal state a pending attempt moves to
type AttemptTransition struct {
	Resolution repository.AttemptResolution
}

// Succeeded reports whether the transition is pending -> success
func (t AttemptTransition) Succeeded() bool {
	return t.Resolution.Status == models.PaymentAttemptStatusSuccess
}

// AccountMutation is the entitlement change a successful attempt applies to its owner
type AccountMutation struct {
	Activate     bool
	GrantPremium bool
	PremiumUntil *time.Time
}

// Grant converts the mutation into the repository's entitlement write
func (m AccountMutation) Grant(at time.Time) repository.EntitlementGrant {
	return repository.EntitlementGrant{
		GrantPremium: m.GrantPremium,
		PremiumUntil: m.PremiumUntil,
		ActivatedAt:  at,
	}
}

// ResolveTransition computes what a provider callback does to a payment attempt and its
// account. It performs no I/O: (current attempt, callback) -> (attempt transition, account mutation).
//
// A nil attempt yields ErrUnknownCorrelation, a terminal attempt ErrAlreadyResolved and an
// interim provider notification ErrInterimCallback. A failure outcome returns a nil mutation.
// A premium grant always opens a fresh window of premiumWindow from now; it never stacks on
// the remaining time of an earlier window.
func ResolveTransition(attempt *models.PaymentAttempt, n *services.CallbackNotification, now time.Time, premiumWindow time.Duration) (*AttemptTransition, *AccountMutation, error) {
	if n == nil {
		return nil, nil, ErrInvalidCallback
	}
	if attempt == nil {
		return nil, nil, ErrUnknownCorrelation
	}
	if attempt.CorrelationToken != n.CorrelationToken {
		return nil, nil, fmt.Errorf("%w: token mismatch", ErrInvalidCallback)
	}
	if attempt.IsTerminal() {
		return nil, nil, ErrAlreadyResolved
	}

	now = now.UTC()
	resolution := repository.AttemptResolution{ResolvedAt: now}
	if code := strings.TrimSpace(n.ResultCode); code != "" {
		resolution.ResultCode = &code
	}

	switch n.Outcome {
	case services.CallbackOutcomeSuccess:
		resolution.Status = models.PaymentAttemptStatusSuccess
		if receipt := strings.TrimSpace(n.ExternalReceiptID); receipt != "" {
			resolution.ExternalReceiptID = &receipt
		}

		mutation := &AccountMutation{Activate: true}
		if attempt.GrantsPremium {
			until := now.Add(premiumWindow)
			mutation.GrantPremium = true
			mutation.PremiumUntil = &until
		}
		return &AttemptTransition{Resolution: resolution}, mutation, nil

	case services.CallbackOutcomeFailure:
		reason := strings.TrimSpace(n.ResultDesc)
		if reason == "" {
			reason = defaultFailureReason
		}
		resolution.Status = models.PaymentAttemptStatusFailed
		resolution.FailureReason = &reason
		return &AttemptTransition{Resolution: resolution}, nil, nil

	case services.CallbackOutcomePending:
		return nil, nil, ErrInterimCallback

	default:
		return nil, nil, fmt.Errorf("%w: unknown outcome %q", ErrInvalidCallback, n.Outcome)
	}
}

// amountMismatch reports a provider-confirmed amount lower than what the attempt charged
func amountMismatch(attempt *models.PaymentAttempt, n *services.CallbackNotification) bool {
	if n == nil || n.Amount == nil {
		return false
	}
	return *n.Amount+0.0001 < float64(attempt.Amount)
}

// applyTo returns a copy of attempt with the transition written onto it
func (t AttemptTransition) applyTo(attempt models.PaymentAttempt) models.PaymentAttempt {
	res := t.Resolution
	attempt.Status = res.Status
	attempt.ExternalReceiptID = res.ExternalReceiptID
	attempt.FailureReason = res.FailureReason
	attempt.ResultCode = res.ResultCode
	attempt.ResolvedAt = utils.ToPtr(res.ResolvedAt)
	attempt.UpdatedAt = res.ResolvedAt
	return attempt
}
