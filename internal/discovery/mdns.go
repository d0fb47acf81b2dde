package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type terminals advertise under.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for terminal discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port for terminals
	DefaultPort = 80
)

// modelPattern matches terminal hostnames (e.g., "DS-K1T341AM.local"). The
// vendor prefixes every hostname with the model designation.
var modelPattern = regexp.MustCompile(`(?i)^(DS-[A-Z0-9]+[A-Z0-9-]*)\.local\.?$`)

// Scanner handles mDNS terminal discovery
type Scanner struct {
	// Timeout is the maximum time to wait for terminal discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForTerminals discovers all terminals on the local network.
func (s *Scanner) ScanForTerminals() ([]*Terminal, error) {
	return s.ScanForTerminalsWithContext(context.Background())
}

// ScanForTerminalsWithContext discovers terminals with a custom context.
func (s *Scanner) ScanForTerminalsWithContext(ctx context.Context) ([]*Terminal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	terminals := make([]*Terminal, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			terminal := s.parseServiceEntry(entry)
			if terminal != nil {
				terminals = append(terminals, terminal)
			}
		}
	}()

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for context to complete (timeout or cancellation)
	<-ctx.Done()

	return terminals, nil
}

// WaitForTerminal waits for a specific terminal by model designation.
// Returns the terminal or an error if not found within timeout.
func (s *Scanner) WaitForTerminal(model string) (*Terminal, error) {
	return s.WaitForTerminalWithContext(context.Background(), model)
}

// WaitForTerminalWithContext waits for a specific terminal with a custom
// context.
func (s *Scanner) WaitForTerminalWithContext(ctx context.Context, model string) (*Terminal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	terminalChan := make(chan *Terminal, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			terminal := s.parseServiceEntry(entry)
			if terminal != nil && strings.EqualFold(terminal.Model, model) {
				terminalChan <- terminal
				cancel() // Found the terminal, cancel context
				return
			}
		}
	}()

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case terminal := <-terminalChan:
		return terminal, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("terminal with model %s not found within timeout", model)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Terminal.
// Returns nil if the entry does not look like an access-control terminal.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Terminal {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	matches := modelPattern.FindStringSubmatch(hostname)
	if len(matches) < 2 {
		return nil
	}
	model := strings.ToUpper(matches[1])

	// Prefer IPv4
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Terminal{
		Model:        model,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForTerminals is a convenience function to scan with a custom timeout.
func ScanForTerminals(timeout time.Duration) ([]*Terminal, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForTerminals()
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan() ([]*Terminal, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.ScanForTerminals()
}
