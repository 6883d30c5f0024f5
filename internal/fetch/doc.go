// Package fetch provides the resilient HTTP client used for every
// network request in the pipeline.
//
// # Result Kinds
//
// FetchPage never turns an HTTP status into a Go error. Instead the
// Result carries a Kind that callers switch on: KindOK with the body,
// KindNotFound for valid negatives, and the three failure kinds for
// outcomes that persisted through retries. Errors are reserved for
// local problems like a cancelled context.
//
// # Retry Policy
//
// A request is attempted MaxRetries+1 times. 429 responses honor the
// Retry-After header when present and fall back to exponential backoff
// otherwise. 5xx responses and transport errors back off as
// BaseDelay * 2^attempt. 404 and other 4xx responses are returned on
// the first attempt without retrying.
package fetch
