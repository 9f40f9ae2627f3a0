// Copyright 2026 The usdaCoding Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retry

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Unlimited disables the attempt limit of a policy.
const Unlimited = 0

// Policy decides whether and when to retry after a failed attempt.
// attempt is the number of attempts made so far (starting at 1).
type Policy interface {
	Next(attempt int) (delay time.Duration, retry bool)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(attempt int) (time.Duration, bool)

// Next calls f(attempt).
func (f PolicyFunc) Next(attempt int) (time.Duration, bool) {
	return f(attempt)
}

// Fixed returns a policy that waits delay between attempts.
// maxAttempts of Unlimited retries forever.
func Fixed(delay time.Duration, maxAttempts int) Policy {
	return PolicyFunc(func(attempt int) (time.Duration, bool) {
		if maxAttempts > 0 && attempt >= maxAttempts {
			return 0, false
		}
		return delay, true
	})
}

// ExponentialPolicy doubles the delay after each attempt.
type ExponentialPolicy struct {
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration

	// MaxAttempts bounds the number of attempts. Unlimited retries forever.
	MaxAttempts int

	// Jitter is the fraction (0-1) of the delay randomized downwards.
	Jitter float64
}

var _ Policy = (*ExponentialPolicy)(nil)

// Exponential returns a validated exponential backoff policy.
func Exponential(base, max time.Duration, maxAttempts int, jitter float64) (*ExponentialPolicy, error) {
	if base <= 0 {
		return nil, fmt.Errorf("%w: base delay must be positive", ErrInvalidPolicy)
	}
	if max > 0 && max < base {
		return nil, fmt.Errorf("%w: max delay %v below base delay %v", ErrInvalidPolicy, max, base)
	}
	if maxAttempts < 0 {
		return nil, fmt.Errorf("%w: max attempts must not be negative", ErrInvalidPolicy)
	}
	if jitter < 0 || jitter > 1 {
		return nil, fmt.Errorf("%w: jitter must be between 0 and 1", ErrInvalidPolicy)
	}
	return &ExponentialPolicy{
		BaseDelay:   base,
		MaxDelay:    max,
		MaxAttempts: maxAttempts,
		Jitter:      jitter,
	}, nil
}

// Next computes baseDelay * 2^(attempt-1), capped and jittered.
func (p *ExponentialPolicy) Next(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return 0, false
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay -= time.Duration(rand.Float64() * spread)
	}
	return delay, true
}
