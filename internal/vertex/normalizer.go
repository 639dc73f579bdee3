// Package vertex provides the Vertex AI reasoning-engine client.
package vertex

import (
	"strings"

	"github.com/tidwall/gjson"
)

// shapeMatcher probes one known response envelope and returns the extracted
// text. The matchers run in a fixed order; the first hit wins. Keeping them
// as an explicit list makes the precedence auditable in one place.
type shapeMatcher func(doc gjson.Result) (string, bool)

var responseShapes = []shapeMatcher{
	matchPlainString,
	matchResponseField,
	matchCandidates,
	matchPredictions,
}

// Normalize extracts conversational text from a reasoning-engine JSON
// response regardless of which envelope the platform used. It never fails:
// unrecognized shapes degrade to the compact JSON of the whole value, and
// non-JSON input is returned as-is.
func Normalize(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}

	if !gjson.Valid(trimmed) {
		// Streamed responses arrive as plain text chunks, not JSON.
		return trimmed
	}

	doc := gjson.Parse(trimmed)
	for _, match := range responseShapes {
		if text, ok := match(doc); ok {
			return text
		}
	}

	return doc.Raw
}

// matchPlainString handles a bare JSON string response
func matchPlainString(doc gjson.Result) (string, bool) {
	if doc.Type == gjson.String {
		return doc.String(), true
	}
	return "", false
}

// matchResponseField handles {"response": ...}
func matchResponseField(doc gjson.Result) (string, bool) {
	if r := doc.Get("response"); r.Exists() {
		if r.Type == gjson.String {
			return r.String(), true
		}
		return r.Raw, true
	}
	return "", false
}

// matchCandidates handles the candidates array envelope: the first
// candidate's content, falling back to its text or output field
func matchCandidates(doc gjson.Result) (string, bool) {
	candidates := doc.Get("candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return "", false
	}

	first := candidates.Array()[0]
	for _, field := range []string{"content", "text", "output"} {
		if v := first.Get(field); v.Exists() {
			if v.Type == gjson.String {
				return v.String(), true
			}
			return v.Raw, true
		}
	}

	return first.Raw, true
}

// matchPredictions handles the predictions array envelope
func matchPredictions(doc gjson.Result) (string, bool) {
	predictions := doc.Get("predictions")
	if !predictions.IsArray() || len(predictions.Array()) == 0 {
		return "", false
	}

	first := predictions.Array()[0]
	for _, field := range []string{"content", "output"} {
		if v := first.Get(field); v.Exists() {
			if v.Type == gjson.String {
				return v.String(), true
			}
			return v.Raw, true
		}
	}

	return first.Raw, true
}
