package lifecycle

import (
	"testing"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []models.RequestStatus{
	models.StatusPending,
	models.StatusInProgress,
	models.StatusAccepted,
	models.StatusCompleted,
	models.StatusCancelled,
}

func rank(s models.RequestStatus) int {
	switch s {
	case models.StatusPending:
		return 0
	case models.StatusInProgress:
		return 1
	case models.StatusCompleted:
		return 3
	default:
		return 2
	}
}

// No allowed transition ever moves a request backwards or out of a terminal state
// other than accepted -> completed.
func TestCanTransition_NeverRegresses(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			result := CanTransition("r1", from, to)
			if !result.Allowed {
				continue
			}
			assert.Less(t, rank(from), rank(to), "%s -> %s must move forward", from, to)
			assert.NotEqual(t, from, to, "self transitions are never allowed")
			if from.IsTerminal() {
				assert.Equal(t, models.StatusAccepted, from)
				assert.Equal(t, models.StatusCompleted, to)
			}
		}
	}
}

func TestCanCancel(t *testing.T) {
	tests := []struct {
		status      models.RequestStatus
		wantAllowed bool
	}{
		{models.StatusPending, true},
		{models.StatusInProgress, true},
		{models.StatusAccepted, false},
		{models.StatusCompleted, false},
		{models.StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			result := CanCancel("r1", tt.status)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			if tt.wantAllowed {
				assert.NoError(t, result.Error())
			} else {
				assert.ErrorIs(t, result.Error(), apperr.ErrInvalidState)
				assert.Contains(t, result.Reason, "can no longer be cancelled")
			}
		})
	}
}

func TestCanSubmitQuote(t *testing.T) {
	tests := []struct {
		name        string
		ctx         QuoteContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "pending request accepts quotes",
			ctx:         QuoteContext{RequestID: "r1", RequestStatus: models.StatusPending},
			wantAllowed: true,
		},
		{
			name:        "in progress request accepts quotes",
			ctx:         QuoteContext{RequestID: "r1", RequestStatus: models.StatusInProgress},
			wantAllowed: true,
		},
		{
			name:        "cancelled request rejects quotes",
			ctx:         QuoteContext{RequestID: "r1", RequestStatus: models.StatusCancelled},
			wantAllowed: false,
			wantReason:  "request r1 is cancelled and no longer accepts quotes",
		},
		{
			name:        "accepted request rejects quotes",
			ctx:         QuoteContext{RequestID: "r1", RequestStatus: models.StatusAccepted},
			wantAllowed: false,
			wantReason:  "request r1 is accepted and no longer accepts quotes",
		},
		{
			name:        "duplicate live quote is refused",
			ctx:         QuoteContext{RequestID: "r1", RequestStatus: models.StatusPending, ProviderHasLiveQuote: true},
			wantAllowed: false,
			wantReason:  "provider already quoted request r1; the requester must reject that quote first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanSubmitQuote(tt.ctx)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			assert.Equal(t, tt.wantReason, result.Reason)
		})
	}
}

func TestCanAcceptQuote(t *testing.T) {
	tests := []struct {
		name        string
		ctx         QuoteContext
		wantAllowed bool
	}{
		{"pending with no selection", QuoteContext{RequestID: "r1", QuoteID: "q1", RequestStatus: models.StatusPending}, true},
		{"in progress with no selection", QuoteContext{RequestID: "r1", QuoteID: "q1", RequestStatus: models.StatusInProgress}, true},
		{"already accepted", QuoteContext{RequestID: "r1", QuoteID: "q1", RequestStatus: models.StatusAccepted}, false},
		{"cancelled", QuoteContext{RequestID: "r1", QuoteID: "q1", RequestStatus: models.StatusCancelled}, false},
		{"rejected quote", QuoteContext{RequestID: "r1", QuoteID: "q1", RequestStatus: models.StatusPending, QuoteRejected: true}, false},
		{"sibling already selected", QuoteContext{RequestID: "r1", QuoteID: "q1", RequestStatus: models.StatusPending, SelectedCount: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAllowed, CanAcceptQuote(tt.ctx).Allowed)
		})
	}
}

func TestCanStartAndComplete(t *testing.T) {
	assert.True(t, CanStart("r1", models.StatusPending).Allowed)
	assert.False(t, CanStart("r1", models.StatusInProgress).Allowed)
	assert.False(t, CanStart("r1", models.StatusCancelled).Allowed)

	assert.True(t, CanComplete("r1", models.StatusAccepted).Allowed)
	assert.False(t, CanComplete("r1", models.StatusPending).Allowed)
	assert.False(t, CanComplete("r1", models.StatusCompleted).Allowed)
}
