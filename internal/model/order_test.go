package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusVerified, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusRefunding, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusConfirmed, OrderStatusPreparing, true},
		{OrderStatusConfirmed, OrderStatusRefunding, false},
		{OrderStatusPreparing, OrderStatusReady, true},
		{OrderStatusReady, OrderStatusVerified, true},
		{OrderStatusReady, OrderStatusPending, false},
		{OrderStatusVerified, OrderStatusCompleted, true},
		{OrderStatusVerified, OrderStatusRefunding, true},
		{OrderStatusVerified, OrderStatusCancelled, false},
		{OrderStatusRefunding, OrderStatusRefunded, true},
		{OrderStatusRefunding, OrderStatusPending, true},
		{OrderStatusRefunding, OrderStatusVerified, true},
		{OrderStatusRefunding, OrderStatusCompleted, false},
		// 终态无出边
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusRefunded, OrderStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransitionTo(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsRedeemable(t *testing.T) {
	assert.True(t, IsRedeemable(OrderStatusPending))
	assert.True(t, IsRedeemable(OrderStatusConfirmed))
	assert.True(t, IsRedeemable(OrderStatusPreparing))
	assert.True(t, IsRedeemable(OrderStatusReady))

	assert.False(t, IsRedeemable(OrderStatusVerified))
	assert.False(t, IsRedeemable(OrderStatusCompleted))
	assert.False(t, IsRedeemable(OrderStatusCancelled))
	assert.False(t, IsRedeemable(OrderStatusRefunding))
	assert.False(t, IsRedeemable(OrderStatusRefunded))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(OrderStatusCompleted))
	assert.True(t, IsTerminal(OrderStatusCancelled))
	assert.True(t, IsTerminal(OrderStatusRefunded))

	assert.False(t, IsTerminal(OrderStatusPending))
	assert.False(t, IsTerminal(OrderStatusVerified))
	assert.False(t, IsTerminal(OrderStatusRefunding))
}

func TestStatusTimestamps(t *testing.T) {
	now := time.Now()

	ts := StatusTimestamps(OrderStatusVerified, now)
	assert.Equal(t, &now, ts["verified_at"])

	ts = StatusTimestamps(OrderStatusCompleted, now)
	assert.Equal(t, &now, ts["completed_at"])

	ts = StatusTimestamps(OrderStatusCancelled, now)
	assert.Equal(t, &now, ts["cancelled_at"])

	ts = StatusTimestamps(OrderStatusRefunded, now)
	assert.Equal(t, &now, ts["refunded_at"])

	// 非终点状态不打时间戳
	assert.Nil(t, StatusTimestamps(OrderStatusConfirmed, now))
	assert.Nil(t, StatusTimestamps(OrderStatusRefunding, now))
}
