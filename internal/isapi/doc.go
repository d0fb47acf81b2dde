// Package isapi implements the HTTP client for access-control terminals
// speaking the vendor's ISAPI convention.
//
// The transport layer handles the terminals' inconsistent authentication
// behavior: requests are first sent anonymously, then retried with Digest or
// Basic credentials depending on the challenge the device reveals. Multipart
// uploads (face biometrics) discover the challenge through a side-channel
// probe because the form body cannot be replayed.
//
// Protocol operations return typed result values rather than errors for
// expected failure modes - a device being offline or answering with a non-OK
// status envelope are both normal outcomes the caller branches on once.
package isapi
