// Package retry runs operations under a configurable retry policy.
//
// A Policy maps an attempt number to a delay and a decision to continue.
// Fixed reproduces a constant-delay, optionally unbounded loop; Exponential
// grows the delay up to a cap with optional jitter and an attempt limit.
package retry
