// Package webhook reads and rewrites event notification (webhook) URLs on
// access-control terminals.
//
// The same terminal model can answer the notification configuration endpoints
// in any of four historical schema shapes: a single JSON object, a
// list-wrapped object, a list-wrapped array, or raw XML-ish text with
// inconsistent tag casing. Reading tolerates all of them; writing attempts a
// fixed sequence of path/payload permutations and trusts only a read-back
// verification, because some firmware acknowledges a PUT with OK and then
// silently drops the change.
package webhook
