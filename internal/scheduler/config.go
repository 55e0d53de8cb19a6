package scheduler

import (
	"fmt"
	"time"
)

// Config holds the configuration for the auto-expiry scheduler.
type Config struct {
	// Threshold is the verification probability (0-100) at or above which
	// an expired report is approved. Below it the report is rejected.
	// Default: 50
	Threshold float64

	// Interval is how often expired reports are swept.
	// Default: 10 minutes
	Interval time.Duration

	// NotifyInterval is how often pending reports are checked for officer
	// notifications and reminders. Zero disables the notification ticker.
	// Default: 1 hour
	NotifyInterval time.Duration

	// Concurrency bounds the reports resolved in parallel within a sweep.
	// Default: 4
	Concurrency int

	// ItemTimeout bounds the resolution of a single report.
	// Default: 30 seconds
	ItemTimeout time.Duration

	// LockKey and LockTTL configure the sweep lock shared by replicas.
	LockKey string
	LockTTL time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Threshold:      50,
		Interval:       10 * time.Minute,
		NotifyInterval: time.Hour,
		Concurrency:    4,
		ItemTimeout:    30 * time.Second,
		LockKey:        "bwg:scheduler:expiry-sweep",
		LockTTL:        5 * time.Minute,
		Now:            time.Now,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %v", c.Threshold)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.NotifyInterval < 0 {
		return fmt.Errorf("notify interval must not be negative, got %v", c.NotifyInterval)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.ItemTimeout <= 0 {
		return fmt.Errorf("item timeout must be positive, got %v", c.ItemTimeout)
	}
	if c.LockKey == "" || c.LockTTL <= 0 {
		return fmt.Errorf("lock key and ttl are required")
	}
	if c.Now == nil {
		return fmt.Errorf("clock is required")
	}
	return nil
}
