package clock

import (
	"errors"
	"sync"
	"time"

	clockapi "github.com/jonboulle/clockwork"
)

var (
	globalClock clockapi.Clock = clockapi.NewRealClock()
	mu          sync.Mutex
)

// Set the globalClock to a new mock clock at the specified time.Time.
func Set(t time.Time) {
	mu.Lock()
	defer mu.Unlock()

	globalClock = clockapi.NewFakeClockAt(t)
}

// Add moves the mocked global clock forward the given time.Duration.
// It will error if the global clock is not mocked.
func Add(d time.Duration) error {
	mu.Lock()
	defer mu.Unlock()

	mock, ok := globalClock.(*clockapi.FakeClock)
	if !ok {
		return errors.New("time not mocked")
	}
	mock.Advance(d)
	return nil
}

// Reset sets the global clock to a pure time implementation.
// Returns any existing Mock if set in case lingering time operations are attached to it.
func Reset() *clockapi.FakeClock {
	mu.Lock()
	defer mu.Unlock()

	existing := globalClock
	globalClock = clockapi.NewRealClock()

	mock, ok := existing.(*clockapi.FakeClock)
	if !ok {
		return nil
	}

	return mock
}

// Now returns the current time from the global clock. Cache TTL deadlines
// and session-age checks must go through this so tests can freeze time.
func Now() time.Time {
	mu.Lock()
	defer mu.Unlock()

	return globalClock.Now()
}

// Since returns the time elapsed on the global clock since t.
func Since(t time.Time) time.Duration {
	mu.Lock()
	defer mu.Unlock()

	return globalClock.Since(t)
}

// Clock is a non-package level wrapper around time that supports stubbing.
// It will use its localized stubs (allowing for parallelized unit tests
// where package level stubbing would cause issues). It falls back to any
// package level time stubs for non-parallel, cross-package integration
// testing scenarios.
//
// If nothing is stubbed, it defaults to default time behavior in the time
// package.
type Clock struct {
	mock *clockapi.FakeClock
}

// Set sets the Clock to a new mock clock at the specified time.Time.
func (c *Clock) Set(t time.Time) {
	c.mock = clockapi.NewFakeClockAt(t)
}

// Add moves clock forward time.Duration if it is mocked.
// It will error if the clock is not mocked.
func (c *Clock) Add(d time.Duration) error {
	if c.mock == nil {
		return errors.New("clock not mocked")
	}
	c.mock.Advance(d)
	return nil
}

// Reset removes the local mock and returns any existing mock if it's set,
// in case lingering time operations are attached to it.
func (c *Clock) Reset() *clockapi.FakeClock {
	existing := c.mock
	c.mock = nil
	return existing
}

// Now returns the Clock's current view of the time.
func (c *Clock) Now() time.Time {
	m := c.mock
	if m == nil {
		return Now()
	}
	return m.Now()
}

// Since returns the time elapsed since t on the Clock.
func (c *Clock) Since(t time.Time) time.Duration {
	m := c.mock
	if m == nil {
		return Since(t)
	}
	return m.Since(t)
}
