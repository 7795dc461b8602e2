package core

import (
	"sync"
	"time"
)

// RateLimits configures the per-session sliding windows. A zero interval or
// ceiling disables the corresponding check.
type RateLimits struct {
	MessageCountingInterval    time.Duration
	MaxMessageCountPerInterval int
	MaxMessageSizePerInterval  int
	CommandCountingInterval    time.Duration
	MaxCommandCountPerInterval int
}

// RateLimiter keeps per-tick buckets for chat traffic and game commands.
// Index 0 is the current tick; older buckets follow.
type RateLimiter struct {
	mu sync.Mutex

	limits        RateLimits
	messageWindow int
	commandWindow int
	messageSizes  []int
	messageCounts []int
	commandCounts []int
}

// NewRateLimiter builds a limiter whose windows keep interval/tick buckets.
func NewRateLimiter(limits RateLimits, tick time.Duration) *RateLimiter {
	return &RateLimiter{
		limits:        limits,
		messageWindow: bucketCount(limits.MessageCountingInterval, tick),
		commandWindow: bucketCount(limits.CommandCountingInterval, tick),
	}
}

func bucketCount(interval, tick time.Duration) int {
	if interval <= 0 || tick <= 0 {
		return 0
	}
	return int(interval / tick)
}

// Tick opens a new bucket in each window and drops the ones that fell out.
func (l *RateLimiter) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.messageWindow > 0 {
		l.messageSizes = advance(l.messageSizes, l.messageWindow)
		l.messageCounts = advance(l.messageCounts, l.messageWindow)
	}
	if l.commandWindow > 0 {
		l.commandCounts = advance(l.commandCounts, l.commandWindow)
	}
}

func advance(buckets []int, keep int) []int {
	buckets = append([]int{0}, buckets...)
	if len(buckets) > keep {
		buckets = buckets[:keep]
	}
	return buckets
}

func sum(buckets []int) int {
	total := 0
	for _, n := range buckets {
		total += n
	}
	return total
}

// AllowMessage accounts a chat send of size bytes. A send that would take either
// the byte or the count total over its ceiling is rejected and not recorded.
func (l *RateLimiter) AllowMessage(size int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.messageWindow <= 0 {
		return true
	}
	if len(l.messageSizes) == 0 {
		l.messageSizes = []int{0}
		l.messageCounts = []int{0}
	}

	if ceiling := l.limits.MaxMessageSizePerInterval; ceiling > 0 && sum(l.messageSizes)+size > ceiling {
		return false
	}
	if ceiling := l.limits.MaxMessageCountPerInterval; ceiling > 0 && sum(l.messageCounts)+1 > ceiling {
		return false
	}

	l.messageSizes[0] += size
	l.messageCounts[0]++
	return true
}

// AllowCommand accounts one game command. Exempt commands are not counted but
// are still rejected while the window is over its ceiling.
func (l *RateLimiter) AllowCommand(exempt bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.commandWindow <= 0 {
		return true
	}
	if len(l.commandCounts) == 0 {
		l.commandCounts = []int{0}
	}
	if !exempt {
		l.commandCounts[0]++
	}

	ceiling := l.limits.MaxCommandCountPerInterval
	return ceiling <= 0 || sum(l.commandCounts) <= ceiling
}
