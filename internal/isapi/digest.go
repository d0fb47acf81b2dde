package isapi

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
)

// digestChallenge holds the fields parsed from a WWW-Authenticate response
// header. It is scoped to a single authentication negotiation.
type digestChallenge struct {
	realm     string
	nonce     string
	qop       string
	opaque    string
	algorithm string
}

// parseDigestChallenge parses a "Digest ..." WWW-Authenticate header value.
// Returns nil when the value is not a parseable Digest challenge.
func parseDigestChallenge(headerValue string) *digestChallenge {
	trimmed := strings.TrimSpace(headerValue)
	rest, ok := strings.CutPrefix(trimmed, "Digest")
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(rest)

	// Split by comma, but keep quoted values intact.
	var parts []string
	var current strings.Builder
	inQuotes := false
	for _, ch := range rest {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case ch == ',' && !inQuotes:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, strings.TrimSpace(current.String()))
	}

	var ch digestChallenge
	for _, item := range parts {
		k, v, found := strings.Cut(item, "=")
		if !found {
			return nil
		}
		key := strings.TrimSpace(k)
		value := strings.TrimSpace(v)
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		switch key {
		case "realm":
			ch.realm = value
		case "nonce":
			ch.nonce = value
		case "qop":
			ch.qop = value
		case "opaque":
			ch.opaque = value
		case "algorithm":
			ch.algorithm = value
		}
	}

	if ch.realm == "" || ch.nonce == "" {
		return nil
	}
	return &ch
}

func md5Hex(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// buildDigestAuthorization computes the Authorization header for a challenge
// per RFC 2617. Only the MD5 algorithm is supported; anything else is a hard
// error rather than a silent fallback to Basic.
func (c *Client) buildDigestAuthorization(method, rawURL string, ch *digestChallenge) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	uri := parsed.Path
	if parsed.RawQuery != "" {
		uri = uri + "?" + parsed.RawQuery
	}

	algorithm := ch.algorithm
	if algorithm == "" {
		algorithm = "MD5"
	}
	if !strings.EqualFold(algorithm, "MD5") {
		return "", fmt.Errorf("Unsupported digest algorithm: %s", algorithm)
	}

	username := c.device.Username
	password := c.device.Password

	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", username, ch.realm, password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, uri))

	// Prefer qop=auth when the challenge offers it.
	qop := ""
	for _, candidate := range strings.Split(ch.qop, ",") {
		if strings.TrimSpace(candidate) == "auth" {
			qop = "auth"
			break
		}
	}

	var response, nc, cnonce string
	if qop != "" {
		nc = "00000001"
		cnonce = fmt.Sprintf("%x", rand.Uint64())
		response = md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, ch.nonce, nc, cnonce, qop, ha2))
	} else {
		response = md5Hex(fmt.Sprintf("%s:%s:%s", ha1, ch.nonce, ha2))
	}

	var header strings.Builder
	fmt.Fprintf(&header, "Digest username=%q, realm=%q, nonce=%q, uri=%q, response=%q",
		username, ch.realm, ch.nonce, uri, response)
	if ch.opaque != "" {
		fmt.Fprintf(&header, ", opaque=%q", ch.opaque)
	}
	header.WriteString(", algorithm=MD5")
	if qop != "" {
		fmt.Fprintf(&header, ", qop=%s, nc=%s, cnonce=%q", qop, nc, cnonce)
	}
	return header.String(), nil
}
