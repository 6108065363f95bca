package retry

import (
	"context"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned when the condition never became true
// within the configured attempt budget.
var ErrAttemptsExhausted = fmt.Errorf("retry: attempts exhausted")

// Poller repeatedly invokes a check until it reports done, waiting a fixed
// interval between attempts. MaxAttempts bounds the loop so a remote that
// never becomes ready cannot hang a sync run forever.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// Until calls check until it returns done=true, an error, or the attempt
// budget runs out. The context is honored between attempts.
func (p Poller) Until(ctx context.Context, check func(ctx context.Context) (done bool, err error)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
