// Package lifecycle holds the request state machine as pure guard functions.
// No I/O happens here; RequestStore evaluates guards inside its transaction.
//
//	pending -> in_progress -> accepted -> completed
//	pending | in_progress -> cancelled
//	pending | in_progress -> accepted (by accepting a quote)
package lifecycle

import (
	"fmt"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // populated when not allowed
}

// Error returns the result as an ErrInvalidState error, or nil if allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return apperr.InvalidState("%s", r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.StatusPending:    {models.StatusInProgress, models.StatusAccepted, models.StatusCancelled},
	models.StatusInProgress: {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:   {models.StatusCompleted},
}

// CanTransition evaluates a raw status change. Every other guard is
// expressed through it, so no path can regress a request.
func CanTransition(requestID string, from, to models.RequestStatus) GuardResult {
	for _, next := range transitions[from] {
		if next == to {
			return allow()
		}
	}
	return deny("request %s cannot move from %s to %s", requestID, from, to)
}

// QuoteContext is what quote guards need to know about the target quote.
type QuoteContext struct {
	RequestID     string
	RequestStatus models.RequestStatus
	QuoteID       string
	QuoteRejected bool
	// ProviderHasLiveQuote is true when the submitting provider already has a
	// non-rejected quote on the request.
	ProviderHasLiveQuote bool
	// SelectedCount is the number of quotes on the request with selected = true.
	SelectedCount int
}

// CanSubmitQuote evaluates whether a provider may quote on a request.
// Rule: the request must be active and the provider must not hold a live quote.
func CanSubmitQuote(ctx QuoteContext) GuardResult {
	if ctx.RequestStatus.IsTerminal() {
		return deny("request %s is %s and no longer accepts quotes", ctx.RequestID, ctx.RequestStatus)
	}
	if ctx.ProviderHasLiveQuote {
		return deny("provider already quoted request %s; the requester must reject that quote first", ctx.RequestID)
	}
	return allow()
}

// CanAcceptQuote evaluates whether a quote may become the selected one.
// Rule: request active, quote not rejected, no quote selected yet.
func CanAcceptQuote(ctx QuoteContext) GuardResult {
	if ctx.QuoteRejected {
		return deny("quote %s was rejected and cannot be accepted", ctx.QuoteID)
	}
	if ctx.SelectedCount > 0 {
		return deny("request %s already has an accepted quote", ctx.RequestID)
	}
	return CanTransition(ctx.RequestID, ctx.RequestStatus, models.StatusAccepted)
}

// CanCancel evaluates a requester-initiated cancellation.
// Rule: only pending or in_progress requests can be cancelled.
func CanCancel(requestID string, status models.RequestStatus) GuardResult {
	if !status.IsActive() {
		return deny("request %s is %s and can no longer be cancelled", requestID, status)
	}
	return CanTransition(requestID, status, models.StatusCancelled)
}

// CanStart evaluates pending -> in_progress.
func CanStart(requestID string, status models.RequestStatus) GuardResult {
	return CanTransition(requestID, status, models.StatusInProgress)
}

// CanComplete evaluates accepted -> completed.
func CanComplete(requestID string, status models.RequestStatus) GuardResult {
	return CanTransition(requestID, status, models.StatusCompleted)
}
