// Package session owns the Omlet bearer token and its recovery.
//
// The cloud expires tokens after a multi-day window, so any authenticated
// call can fail with 401/403 at any time. The Manager reacts by attempting
// a re-login, bounded by a circuit breaker: after three consecutive login
// failures the session is permanently failed for the life of the process.
// That stops the daemon from hammering the vendor's login endpoint on bad
// credentials while still riding out routine token expiry.
//
// Permanent failure is deliberately sticky. Only a process restart (after
// the operator fixes the credentials) clears it.
//
// The package also persists the token and selected device id through the
// Store so a restart does not need a fresh login, and handles first-run
// device auto-discovery: an account with exactly one device selects it
// automatically, anything else is left for the setup layer to resolve.
package session
