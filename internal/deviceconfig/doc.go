// Package deviceconfig reads and updates system configuration on
// access-control terminals.
//
// Terminals expose their system settings (clock, NTP servers, network
// interfaces) as JSON documents under /ISAPI/System. This package wraps
// those endpoints with three safeguards:
//
//   - Credential expiry is checked before any request, so a stale saved
//     password fails fast instead of tripping the terminal's lockout.
//   - Updates are gated on a capability probe: a setting the firmware never
//     answered for is refused rather than written blind.
//   - Every update captures a before-snapshot of the document, so the
//     previous value can be restored by hand if the write misbehaves.
//
// Firmware varies wildly between terminal models. Read failures for a single
// section are captured inline in the result rather than failing the whole
// read, mirroring how the capability probe treats unanswered endpoints.
package deviceconfig
