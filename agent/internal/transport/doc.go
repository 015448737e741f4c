// Package transport is the HTTP implementation of the relay's POST capability.
//
// Client.Post sends a JSON body to a URL and returns the response when the
// backend answers 2xx. Any other status comes back as *StatusError. Failures
// caused by the peer dropping a reused keep-alive connection (EOF, reset,
// aborted, broken pipe, "server closed idle connection") are wrapped with
// ErrStaleConnection so the relay can apply its one-shot retry; IsStale
// reports that classification.
//
// Authentication is injected by a RoundTripper: API key header, bearer token
// or basic auth, with secrets resolved from environment variables. mTLS loads
// a client certificate and optional CA from the config. Every attempt carries
// a fresh X-Request-ID.
package transport
