package models

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusPartial, StatusCompleted, StatusFailed, StatusExpired, StatusReturned}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPartial, StatusProcessing}:   true,
		{StatusPending, StatusPartial}:      true,
		{StatusProcessing, StatusPartial}:   true,
		{StatusPending, StatusCompleted}:    true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusPartial, StatusCompleted}:    true,
		{StatusPending, StatusFailed}:       true,
		{StatusProcessing, StatusFailed}:    true,
		{StatusPartial, StatusFailed}:       true,
		{StatusPending, StatusExpired}:      true,
		{StatusPartial, StatusExpired}:      true,
		{StatusCompleted, StatusReturned}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesOnlyLeaveThroughReturn(t *testing.T) {
	for _, from := range []Status{StatusFailed, StatusExpired, StatusReturned} {
		for to := range ValidStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusPartial.IsTerminal())
	assert.True(t, StatusExpired.IsFailure())
	assert.False(t, StatusReturned.IsFailure())
}

func TestPredecessorsIsACopy(t *testing.T) {
	p := Predecessors(StatusReturned)
	p[0] = StatusPending
	assert.Equal(t, []Status{StatusCompleted}, Predecessors(StatusReturned))
}

func TestWithdrawalStatusFor(t *testing.T) {
	assert.Equal(t, WithdrawalStatusProcessed, WithdrawalStatusFor(StatusCompleted))
	assert.Equal(t, WithdrawalStatusFailed, WithdrawalStatusFor(StatusFailed))
	assert.Equal(t, WithdrawalStatusExpired, WithdrawalStatusFor(StatusExpired))
	assert.Equal(t, WithdrawalStatusReturned, WithdrawalStatusFor(StatusReturned))
	assert.Equal(t, WithdrawalStatusPending, WithdrawalStatusFor(StatusProcessing))
}
