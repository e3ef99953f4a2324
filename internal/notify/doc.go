// Package notify provides notification interfaces and implementations for new dataset captures.
//
// The notify package supports announcing newly captured datasets to various
// platforms including Twitter. It handles OAuth authentication, rate limiting,
// and message formatting for different notification channels.
package notify
