// Package httputil provides the HTTP layer shared by the registry resolver
// and the archive fetcher.
//
// # Overview
//
//   - [Client]: GET helper with default headers, status classification and
//     observability hooks
//   - [Retry]: automatic retry with exponential backoff
//
// # Status handling
//
// Every non-200 response becomes a [StatusError] carrying the status code.
// 404 unwraps to [ErrNotFound]; other codes unwrap to [ErrUnexpectedStatus].
// Transport failures wrap [ErrNetwork]. Use [StatusCode] to recover the code
// from a wrapped error.
//
// # Retry
//
// Clients do not retry by default: a failed lookup is reported once and the
// caller decides what to do. [WithRetries] opts in to retrying transient
// failures:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// with exponential backoff starting at [DefaultRetryDelay].
//
//	client := httputil.NewClient(httputil.WithRetries(2))
//	var doc map[string]any
//	err := client.GetJSON(ctx, "https://registry.npmjs.org/express/4.18.2", &doc)
package httputil
