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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Do runs operation until it succeeds, the policy gives up, the error is
// marked Permanent, or ctx is done.
// When the policy gives up the returned error wraps both ErrExhausted and
// the last operation error.
func Do(ctx context.Context, policy Policy, operation func(ctx context.Context) error) error {
	return DoWithLogger(ctx, policy, slog.Default(), operation)
}

// DoWithLogger is Do with an explicit logger for retry diagnostics.
func DoWithLogger(ctx context.Context, policy Policy, logger *slog.Logger, operation func(ctx context.Context) error) error {
	if policy == nil {
		return fmt.Errorf("%w: nil policy", ErrInvalidPolicy)
	}

	for attempt := 1; ; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return permanent.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay, again := policy.Next(attempt)
		if !again {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		logger.Warn("operation failed, will retry", "attempt", attempt, "delay", delay, "err", err)

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
