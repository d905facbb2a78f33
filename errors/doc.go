// Package errors provides error classification and wrapping helpers used
// across the dashboard platform.
//
// Errors fall into three classes:
//
//   - Transient: temporary conditions (connection loss, timeouts) that a
//     caller may retry
//   - Invalid: bad input or configuration (malformed payloads, invalid
//     extraction paths) that retrying will not fix
//   - Fatal: unrecoverable conditions that should stop processing
//
// Components wrap errors at their boundary with context:
//
//	return errors.WrapTransient(err, "Registry", "Subscribe", "open stream")
//
// which produces "Registry.Subscribe: open stream failed: <cause>" and tags
// the error transient for callers that inspect classification with
// IsTransient, IsInvalid, or IsFatal.
package errors
