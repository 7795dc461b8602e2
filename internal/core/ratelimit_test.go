package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowMessageSizeCeiling(t *testing.T) {
	l := NewRateLimiter(RateLimits{
		MessageCountingInterval:   3 * time.Second,
		MaxMessageSizePerInterval: 10,
	}, time.Second)

	assert.True(t, l.AllowMessage(6))
	assert.False(t, l.AllowMessage(5), "6+5 exceeds 10")
	// The rejected send was not recorded, so 4 more bytes still fit.
	assert.True(t, l.AllowMessage(4))
	assert.False(t, l.AllowMessage(1))
}

func TestAllowMessageCountCeiling(t *testing.T) {
	l := NewRateLimiter(RateLimits{
		MessageCountingInterval:    2 * time.Second,
		MaxMessageCountPerInterval: 2,
	}, time.Second)

	assert.True(t, l.AllowMessage(100))
	assert.True(t, l.AllowMessage(100))
	assert.False(t, l.AllowMessage(1))
}

func TestMessageWindowSlides(t *testing.T) {
	l := NewRateLimiter(RateLimits{
		MessageCountingInterval:   3 * time.Second,
		MaxMessageSizePerInterval: 10,
	}, time.Second)

	assert.True(t, l.AllowMessage(10))
	l.Tick()
	l.Tick()
	assert.False(t, l.AllowMessage(1), "still inside the window")
	l.Tick()
	assert.True(t, l.AllowMessage(10), "oldest bucket fell out")
}

func TestAllowCommandExemptions(t *testing.T) {
	l := NewRateLimiter(RateLimits{
		CommandCountingInterval:    2 * time.Second,
		MaxCommandCountPerInterval: 2,
	}, time.Second)

	for range 10 {
		assert.True(t, l.AllowCommand(true), "exempt commands are not counted")
	}
	assert.True(t, l.AllowCommand(false))
	assert.True(t, l.AllowCommand(false))
	assert.False(t, l.AllowCommand(false))
	assert.False(t, l.AllowCommand(true), "exempt commands are refused while over the ceiling")

	l.Tick()
	l.Tick()
	assert.True(t, l.AllowCommand(false))
}

func TestDisabledWindows(t *testing.T) {
	l := NewRateLimiter(RateLimits{}, time.Second)
	for range 100 {
		assert.True(t, l.AllowMessage(1000))
		assert.True(t, l.AllowCommand(false))
	}
}
