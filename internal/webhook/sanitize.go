package webhook

import (
	"slices"
	"strings"
)

// DecodeMarkupEntities undoes the escaping layers devices wrap around URL
// values: JSON-escaped slashes plus the common XML character entities.
func DecodeMarkupEntities(input string) string {
	replacer := strings.NewReplacer(
		`\/`, "/",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return replacer.Replace(input)
}

// SanitizeCandidate normalizes one raw URL candidate. It returns "" when the
// value is not a usable webhook URL: empty after trimming, a schema-reference
// decoy (the device embeds xmlschema URLs in some responses), or neither
// http(s) nor rooted.
func SanitizeCandidate(input string) string {
	decoded := DecodeMarkupEntities(input)
	trimmed := strings.TrimSpace(decoded)
	trimmed = strings.Trim(trimmed, `"'`)
	trimmed = strings.TrimRight(trimmed, ">")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "xmlschema") {
		return ""
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "/") {
		return trimmed
	}
	return ""
}

// cleanCandidates sanitizes, sorts and deduplicates a candidate list.
func cleanCandidates(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if clean := SanitizeCandidate(item); clean != "" {
			out = append(out, clean)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// isValidCandidate is the stricter filter applied when picking the primary
// URL: it additionally rejects values still carrying markup remnants and
// ISAPI-rooted paths (those are the device's own endpoints, not callbacks).
func isValidCandidate(url string) bool {
	lower := strings.ToLower(url)
	if strings.Contains(lower, "isapi.org/ver20/xmlschema") {
		return false
	}
	if strings.Contains(lower, "&gt;") || strings.Contains(lower, "&lt;") ||
		strings.Contains(lower, "<") || strings.Contains(lower, ">") {
		return false
	}
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		(strings.HasPrefix(lower, "/") && !strings.HasPrefix(lower, "/isapi/"))
}

// PickPrimary selects the most plausible webhook URL for a direction ("in"
// or "out"): prefer one whose path targets that direction or that carries a
// secret parameter, else the first valid candidate. Returns "" when nothing
// qualifies.
func PickPrimary(urls []string, direction string) string {
	dir := strings.ToLower(direction)
	for _, u := range urls {
		lower := strings.ToLower(u)
		directionMatch := strings.Contains(lower, "/"+dir+"?") ||
			strings.HasSuffix(lower, "/"+dir) ||
			strings.Contains(lower, "/"+dir+"&")
		if isValidCandidate(u) && (directionMatch || strings.Contains(lower, "secret=")) {
			return u
		}
	}
	for _, u := range urls {
		if isValidCandidate(u) {
			return u
		}
	}
	return ""
}

// NormalizeDirection validates a webhook direction argument.
func NormalizeDirection(direction string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "in":
		return "in", nil
	case "out":
		return "out", nil
	}
	return "", errDirection
}
