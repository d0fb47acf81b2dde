package webhook

import (
	"slices"
	"strings"
)

// urlTagNames are the tag names (lowercased, namespace prefix stripped) whose
// inner text is treated as a URL candidate when scanning raw responses.
var urlTagNames = []string{"url", "httpurl", "hosturl", "callbackurl"}

// rewriteTagNames are the exact-case tag spellings rewritten when a raw
// configuration body is pushed back to the device.
var rewriteTagNames = []string{"url", "URL", "httpUrl", "HttpUrl", "HTTPUrl", "address", "Address"}

// ExtractURLsFromText pulls webhook URL candidates out of a raw response
// body using both heuristics: a direct substring scan and the tag scanner.
func ExtractURLsFromText(text string) []string {
	decoded := DecodeMarkupEntities(text)
	urls := extractDirectCandidates(decoded)
	urls = append(urls, extractTagValues(decoded)...)
	return cleanCandidates(urls)
}

// extractDirectCandidates scans for http://, https:// and /webhook/ runs
// terminated by whitespace, quotes or angle brackets.
func extractDirectCandidates(text string) []string {
	var out []string
	i := 0
	for i < len(text) {
		rest := text[i:]
		if !strings.HasPrefix(rest, "http://") &&
			!strings.HasPrefix(rest, "https://") &&
			!strings.HasPrefix(rest, "/webhook/") {
			i++
			continue
		}
		end := i
		for end < len(text) {
			c := text[end]
			if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '"' || c == '\'' || c == '<' || c == '>' {
				break
			}
			end++
		}
		if end > i {
			out = append(out, strings.TrimSpace(text[i:end]))
		}
		i = end
	}
	return out
}

// tagBaseName extracts the lowercased local name of a tag token, dropping
// attributes and any namespace prefix.
func tagBaseName(token string) string {
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.ToLower(name)
}

// extractTagValues is a minimal scanner over XML-ish text: it matches
// opening/closing pairs among urlTagNames regardless of case or namespace
// prefix and returns their trimmed inner text. It makes no attempt to be a
// real XML parser; device responses are too malformed for one anyway.
func extractTagValues(text string) []string {
	var out []string
	i := 0
	for i < len(text) {
		relOpen := strings.Index(text[i:], "<")
		if relOpen < 0 {
			break
		}
		open := i + relOpen
		relEnd := strings.Index(text[open:], ">")
		if relEnd < 0 {
			break
		}
		end := open + relEnd
		if end <= open+1 {
			i = end + 1
			continue
		}
		token := strings.TrimSpace(text[open+1 : end])
		if strings.HasPrefix(token, "/") || strings.HasPrefix(token, "?") || strings.HasPrefix(token, "!") {
			i = end + 1
			continue
		}
		baseName := tagBaseName(token)
		if !slices.Contains(urlTagNames, baseName) {
			i = end + 1
			continue
		}

		closeStart, closeEnd := -1, -1
		search := end + 1
		for search < len(text) {
			relCloseOpen := strings.Index(text[search:], "</")
			if relCloseOpen < 0 {
				break
			}
			closeOpen := search + relCloseOpen
			relCloseEnd := strings.Index(text[closeOpen:], ">")
			if relCloseEnd < 0 {
				break
			}
			candidateEnd := closeOpen + relCloseEnd
			if tagBaseName(strings.TrimSpace(text[closeOpen+2:candidateEnd])) == baseName {
				closeStart, closeEnd = closeOpen, candidateEnd
				break
			}
			search = candidateEnd + 1
		}
		if closeStart < 0 {
			i = end + 1
			continue
		}
		if closeStart > end+1 {
			if value := strings.TrimSpace(text[end+1 : closeStart]); value != "" {
				out = append(out, value)
			}
		}
		i = closeEnd + 1
	}
	return out
}

// ReplaceXMLURLTags rewrites the inner text of every exact-case URL-bearing
// tag pair to the target URL, returning the rewritten body and how many
// nodes changed.
func ReplaceXMLURLTags(xml, targetURL string) (string, int) {
	out := xml
	total := 0
	for _, tag := range rewriteTagNames {
		openTag := "<" + tag + ">"
		closeTag := "</" + tag + ">"
		start := 0
		for {
			relOpen := strings.Index(out[start:], openTag)
			if relOpen < 0 {
				break
			}
			valueStart := start + relOpen + len(openTag)
			relClose := strings.Index(out[valueStart:], closeTag)
			if relClose < 0 {
				break
			}
			closePos := valueStart + relClose
			out = out[:valueStart] + targetURL + out[closePos:]
			total++
			start = valueStart + len(targetURL) + len(closeTag)
		}
	}
	return out, total
}
