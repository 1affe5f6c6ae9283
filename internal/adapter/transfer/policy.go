package transfer

import (
	"fmt"
	"time"
)

// BackoffMode is the download.retry_backoff setting
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Policy decides how often and how long the client waits between attempts
// of one download.
type Policy struct {
	Mode       BackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy matches the download section of the default config
func DefaultPolicy() Policy {
	return Policy{
		Mode:       BackoffLinear,
		Initial:    time.Second,
		Max:        30 * time.Second,
		MaxRetries: 3,
	}
}

// NewPolicy builds a policy from the download.retry_* settings. Unset or
// unknown values keep their default, and Initial never exceeds Max.
func NewPolicy(mode string, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	switch BackoffMode(mode) {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = BackoffMode(mode)
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// Delay is the wait before retry n, counting from 1. It is zero for n < 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}

	var d time.Duration
	switch p.Mode {
	case BackoffFixed:
		d = p.Initial
	case BackoffExponential:
		d = p.Initial
		for i := 1; i < n && d < p.Max; i++ {
			d *= 2
		}
	default:
		d = time.Duration(n) * p.Initial
	}
	return min(d, p.Max)
}

func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("download.retry_initial must be > 0, got %s", p.Initial)
	}
	if p.Max <= 0 {
		return fmt.Errorf("download.retry_max must be > 0, got %s", p.Max)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("download.retry_count must be >= 0, got %d", p.MaxRetries)
	}
	return nil
}
