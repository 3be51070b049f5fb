// Package omlet is a minimal client for the Omlet cloud API.
//
// It covers exactly the four calls the daemon needs: login, device listing,
// device state reads, and door/light actions. Nothing else from the vendor
// protocol is implemented.
//
// # Error taxonomy
//
// Every failure is classified into one of four sentinel errors, checked
// with errors.Is:
//
//   - ErrAuthRejected: the cloud returned 401/403 (expired or bad token)
//   - ErrMalformed: the response body could not be parsed or lacked a
//     required field
//   - ErrTransient: network failure or timeout, safe to retry later
//   - ErrRejected: the cloud refused the request for a non-auth reason
//
// Callers route ErrAuthRejected into the session recovery state machine
// and treat everything else as a failed poll.
//
// # Response shape tolerance
//
// The device listing endpoint has returned both a bare JSON array and a
// {"data": [...]} wrapper across API revisions. ListDevices accepts both.
package omlet
