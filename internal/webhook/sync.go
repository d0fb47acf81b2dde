package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/logging"
)

var errDirection = errors.New("direction must be in|out")

// jsonCandidatePaths are tried in order when reading configuration as JSON.
var jsonCandidatePaths = []string{
	"ISAPI/Event/notification/httpHosts?format=json",
	"ISAPI/Event/notification/httpHosts/1?format=json",
}

// rawCandidatePaths are the fallback endpoints queried without the JSON
// format hint; old firmware answers them with XML-ish text.
var rawCandidatePaths = []string{
	"ISAPI/Event/notification/httpHosts",
	"ISAPI/Event/notification/httpHosts/1",
}

// ReadResult is the outcome of reading a terminal's webhook configuration.
type ReadResult struct {
	Direction  string   `json:"direction"`
	Path       string   `json:"path"`
	Format     string   `json:"format"`
	PrimaryURL string   `json:"primaryUrl,omitempty"`
	URLs       []string `json:"urls"`
	Raw        Payload  `json:"raw"`
}

// SyncResult is the outcome of a verified webhook URL write.
type SyncResult struct {
	Direction      string   `json:"direction"`
	Path           string   `json:"path"`
	Format         string   `json:"format"`
	Attempt        string   `json:"attempt,omitempty"`
	ReplacedFields int      `json:"replacedFields"`
	BeforeURLs     []string `json:"beforeUrls"`
	AfterURLs      []string `json:"afterUrls"`
	Raw            Payload  `json:"raw"`
}

// readJSONConfig tries each JSON candidate path and returns the first
// response that parses, with the path it came from.
func readJSONConfig(c *isapi.Client) (string, any, error) {
	var attempts []string
	for _, path := range jsonCandidatePaths {
		raw, err := c.GetJSON(path)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s => %s", path, err))
			continue
		}
		return path, raw, nil
	}
	return "", nil, fmt.Errorf("Could not read webhook configuration. Attempts: %s", strings.Join(attempts, " | "))
}

// readHostURLs re-reads the configuration after a write and extracts the
// URLs now stored, preferring the single-host path for the given host id.
func readHostURLs(c *isapi.Client, hostID string) []string {
	singlePath := fmt.Sprintf("ISAPI/Event/notification/httpHosts/%s?format=json", hostID)
	if raw, err := c.GetJSON(singlePath); err == nil {
		scoped := raw
		if root, ok := raw.(map[string]any); ok {
			if item, found := root["HttpHostNotification"]; found {
				scoped = map[string]any{"HttpHostNotification": item}
			} else {
				scoped = map[string]any{"HttpHostNotification": raw}
			}
		}
		if urls := ExtractURLsFromJSON(scoped); len(urls) > 0 {
			return urls
		}
	}
	if raw, err := c.GetJSON("ISAPI/Event/notification/httpHosts?format=json"); err == nil {
		if urls := ExtractURLsFromJSON(raw); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

// ReadConfig reads the webhook configuration for a direction, trying the
// JSON shapes first and falling back to raw-text scanning.
func ReadConfig(c *isapi.Client, direction string) (ReadResult, error) {
	dir, err := NormalizeDirection(direction)
	if err != nil {
		return ReadResult{}, err
	}

	if path, raw, err := readJSONConfig(c); err == nil {
		scoped := raw
		if notification, _, found := primaryNotification(raw); found {
			scoped = map[string]any{"HttpHostNotification": notification}
		}
		urls := ExtractURLsFromJSON(raw)
		if primary := PickPrimary(urls, dir); primary != "" {
			return ReadResult{
				Direction:  dir,
				Path:       path,
				Format:     "json",
				PrimaryURL: primary,
				URLs:       urls,
				Raw:        JSONPayload(scoped),
			}, nil
		}
	}

	var attempts []string
	for _, path := range rawCandidatePaths {
		text, err := c.GetRaw(path)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s => %s", path, err))
			continue
		}
		urls := ExtractURLsFromText(text)
		if len(urls) == 0 {
			continue
		}
		return ReadResult{
			Direction:  dir,
			Path:       path,
			Format:     "raw",
			PrimaryURL: PickPrimary(urls, dir),
			URLs:       urls,
			Raw:        TextPayload(text),
		}, nil
	}
	return ReadResult{}, fmt.Errorf("Could not read webhook URL from device: %s", strings.Join(attempts, " | "))
}

func displayJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// Sync writes the target URL into the terminal's webhook configuration and
// verifies it stuck. JSON path: rewrite every url-keyed field of the primary
// notification entry, then try three path/payload permutations until a
// read-back confirms the value; an OK response that does not survive
// read-back counts as a failed attempt. Raw fallback: substitute URL-bearing
// XML tags in the raw body and push it back. Exhausting every attempt is a
// hard error carrying each attempt's diagnostic.
func Sync(c *isapi.Client, direction, targetURL string) (SyncResult, error) {
	dir, err := NormalizeDirection(direction)
	if err != nil {
		return SyncResult{}, err
	}
	target := NormalizeTargetURL(targetURL)
	if target == "" {
		return SyncResult{}, errors.New("targetUrl must not be empty")
	}
	log := logging.GetLogger()

	if _, raw, err := readJSONConfig(c); err == nil {
		notification, id, found := primaryNotification(raw)
		if !found {
			if root, ok := raw.(map[string]any); ok {
				notification, id = root, "1"
				found = true
			}
		}
		if found {
			beforeURLs := ExtractURLsFromJSON(map[string]any{"HttpHostNotification": notification})
			replaced := ReplaceURLFields(notification, target)
			if replaced > 0 {
				attempts := []struct {
					name    string
					path    string
					payload any
				}{
					{
						"single-path/single-payload",
						fmt.Sprintf("ISAPI/Event/notification/httpHosts/%s?format=json", id),
						map[string]any{"HttpHostNotification": notification},
					},
					{
						"list-path/list-payload",
						"ISAPI/Event/notification/httpHosts?format=json",
						map[string]any{"HttpHostNotificationList": map[string]any{"HttpHostNotification": notification}},
					},
					{
						"list-path/single-payload",
						"ISAPI/Event/notification/httpHosts?format=json",
						map[string]any{"HttpHostNotification": notification},
					},
				}

				var attemptErrors []string
				for _, attempt := range attempts {
					putResult, err := c.PutJSON(attempt.path, attempt.payload)
					if err != nil {
						attemptErrors = append(attemptErrors, fmt.Sprintf("%s => %s", attempt.name, err))
						continue
					}
					if !responseStatusOK(putResult) {
						attemptErrors = append(attemptErrors, fmt.Sprintf("%s => status not OK: %s", attempt.name, displayJSON(putResult)))
						continue
					}
					afterURLs := readHostURLs(c, id)
					applied := false
					for _, item := range afterURLs {
						if NormalizeTargetURL(item) == target {
							applied = true
							break
						}
					}
					if applied {
						log.Debug("webhook sync applied",
							zap.String("attempt", attempt.name),
							zap.String("path", attempt.path),
							zap.Int("replacedFields", replaced))
						return SyncResult{
							Direction:      dir,
							Path:           attempt.path,
							Format:         "json",
							Attempt:        attempt.name,
							ReplacedFields: replaced,
							BeforeURLs:     beforeURLs,
							AfterURLs:      afterURLs,
							Raw:            JSONPayload(putResult),
						}, nil
					}
					after := "-"
					if len(afterURLs) > 0 {
						after = strings.Join(afterURLs, " | ")
					}
					attemptErrors = append(attemptErrors, fmt.Sprintf("%s => applied=false, after=%s", attempt.name, after))
				}

				return SyncResult{}, fmt.Errorf(
					"Device did not persist the URL. hostId=%s, expected=%s, attempts=%s",
					id, target, strings.Join(attemptErrors, " || "))
			}
		}
	}

	var attemptErrors []string
	for _, path := range rawCandidatePaths {
		text, err := c.GetRaw(path)
		if err != nil {
			attemptErrors = append(attemptErrors, fmt.Sprintf("%s => %s", path, err))
			continue
		}
		beforeURLs := ExtractURLsFromText(text)
		if len(beforeURLs) == 0 {
			continue
		}
		updated, replaced := ReplaceXMLURLTags(text, target)
		if replaced == 0 {
			continue
		}
		putPath := NormalizeHTTPHostsPutPath(path)
		afterText, err := c.PutRaw(putPath, updated, "application/xml")
		if err != nil {
			return SyncResult{}, err
		}
		return SyncResult{
			Direction:      dir,
			Path:           putPath,
			Format:         "raw",
			ReplacedFields: replaced,
			BeforeURLs:     beforeURLs,
			AfterURLs:      ExtractURLsFromText(afterText),
			Raw:            TextPayload(afterText),
		}, nil
	}
	return SyncResult{}, fmt.Errorf("Webhook sync failed: %s", strings.Join(attemptErrors, " | "))
}
