// Package coop holds the device state cache and serialises commands.
//
// The Coordinator is the single owner of the last-known device state. A
// background loop refreshes it on a fixed interval; presentation layers
// read from the cache and never hit the network on their own, except for
// the one synchronous refresh a cold-start read triggers.
//
// # Snapshot semantics
//
// Device state is an immutable Snapshot value replaced wholesale on every
// successful poll. Readers get copies; nothing mutates a snapshot in
// place, so there is no field-level locking and no torn reads.
//
// # Commands
//
// Issue sends the action to the cloud and, in one atomic step against the
// cache, applies the optimistic transition (open command reads as opening)
// and schedules a one-shot confirmation refresh. The 15s confirmation
// delay matches the door's physical actuation time.
//
// # Failure policy
//
// A failed background refresh keeps the previous snapshot authoritative
// and is logged, never propagated. Auth rejections are routed through the
// session manager's recovery, then retried exactly once. A permanently
// failed session surfaces through Unavailable() as a standing condition
// rather than an error on every read.
package coop
