package webhook

// Payload is a webhook configuration response in whichever format the
// firmware produced: structured JSON or raw XML-ish text.
type Payload struct {
	JSON   any    `json:"json,omitempty"`
	Text   string `json:"text,omitempty"`
	IsText bool   `json:"isText,omitempty"`
}

// JSONPayload wraps a structured configuration tree.
func JSONPayload(value any) Payload {
	return Payload{JSON: value}
}

// TextPayload wraps a raw configuration body.
func TextPayload(text string) Payload {
	return Payload{Text: text, IsText: true}
}

// ExtractURLs returns the sanitized webhook URL candidates found in the
// payload, dispatching on its format.
func (p Payload) ExtractURLs() []string {
	if p.IsText {
		return ExtractURLsFromText(p.Text)
	}
	return ExtractURLsFromJSON(p.JSON)
}
