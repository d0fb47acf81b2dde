package webhook

import (
	"fmt"
	"net/url"
	"strings"
)

// ReplaceURLFields walks a decoded JSON tree and overwrites every
// string-valued object field whose key contains "url" (case-insensitively)
// with the new value. Mutation happens in place; the count of replaced
// fields is returned.
func ReplaceURLFields(value any, newURL string) int {
	switch node := value.(type) {
	case map[string]any:
		changed := 0
		for key, item := range node {
			if _, isString := item.(string); isString && strings.Contains(strings.ToLower(key), "url") {
				node[key] = newURL
				changed++
				continue
			}
			changed += ReplaceURLFields(item, newURL)
		}
		return changed
	case []any:
		changed := 0
		for _, item := range node {
			changed += ReplaceURLFields(item, newURL)
		}
		return changed
	default:
		return 0
	}
}

// NormalizeTargetURL converts a caller-supplied target URL into the
// device-relative form terminals store: path plus query, scheme/host/fragment
// stripped, "/" when nothing remains. Values that are not absolute URLs pass
// through trimmed.
func NormalizeTargetURL(targetURL string) string {
	trimmed := strings.TrimSpace(targetURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}
	value := parsed.Path
	if parsed.RawQuery != "" {
		value += "?" + parsed.RawQuery
	}
	if value == "" {
		return "/"
	}
	return value
}

// NormalizeHTTPHostsPutPath maps the single-host read path onto the
// collection path writes go to. Idempotent on already-normalized paths.
func NormalizeHTTPHostsPutPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if strings.Contains(trimmed, "ISAPI/Event/notification/httpHosts/1") {
		return strings.Replace(trimmed,
			"ISAPI/Event/notification/httpHosts/1",
			"ISAPI/Event/notification/httpHosts", 1)
	}
	return trimmed
}

// ExtractURLsFromJSON pulls sanitized URL candidates from the primary
// notification entry of a structured configuration tree.
func ExtractURLsFromJSON(raw any) []string {
	notification, _, ok := primaryNotification(raw)
	if !ok {
		return nil
	}
	var urls []string
	for _, key := range []string{"url", "URL", "httpURL", "httpUrl", "HttpURL", "HttpUrl"} {
		if value, isString := notification[key].(string); isString {
			if clean := SanitizeCandidate(value); clean != "" {
				urls = append(urls, clean)
			}
		}
	}
	return cleanCandidates(urls)
}

// hostID reads the notification entry's id, tolerating string and numeric
// encodings.
func hostID(value any) string {
	node, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	switch id := node["id"].(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return fmt.Sprintf("%d", int64(id))
	}
	return ""
}

// primaryNotification locates the notification entry writes should target,
// across the schema shapes firmware generations use: a bare
// HttpHostNotification object, or a HttpHostNotificationList wrapping either
// an object or an array. For arrays the entry with id "1" wins, else the
// first. The returned id defaults to "1".
func primaryNotification(raw any) (map[string]any, string, bool) {
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, "", false
	}

	if item, found := root["HttpHostNotification"]; found {
		if node, isObject := item.(map[string]any); isObject {
			id := hostID(node)
			if id == "" {
				id = "1"
			}
			return node, id, true
		}
		return nil, "", false
	}

	list, found := root["HttpHostNotificationList"].(map[string]any)
	if !found {
		return nil, "", false
	}
	switch entries := list["HttpHostNotification"].(type) {
	case map[string]any:
		id := hostID(entries)
		if id == "" {
			id = "1"
		}
		return entries, id, true
	case []any:
		if len(entries) == 0 {
			return nil, "", false
		}
		for _, entry := range entries {
			if hostID(entry) == "1" {
				if node, isObject := entry.(map[string]any); isObject {
					return node, "1", true
				}
			}
		}
		node, isObject := entries[0].(map[string]any)
		if !isObject {
			return nil, "", false
		}
		id := hostID(node)
		if id == "" {
			id = "1"
		}
		return node, id, true
	}
	return nil, "", false
}

// responseStatusOK interprets a PUT response envelope. Responses without any
// status field are treated as accepted; verification happens by read-back
// anyway.
func responseStatusOK(value any) bool {
	node, ok := value.(map[string]any)
	if !ok {
		return true
	}
	if code, found := node["statusCode"].(float64); found {
		return int(code) == 1
	}
	if status, found := node["statusString"].(string); found {
		return strings.EqualFold(status, "OK")
	}
	return true
}
