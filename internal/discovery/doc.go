// Package discovery provides mDNS-based discovery of access-control
// terminals on the local network.
//
// Terminals advertise themselves using the "_http._tcp" service type with a
// model-prefixed hostname (e.g. "DS-K1T341AM.local"). Discovery broadcasts
// mDNS queries, filters the answers down to terminal-looking hosts, and
// returns whatever was heard within the timeout.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Terminals must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple discovery sessions can
// run simultaneously without interference.
package discovery
