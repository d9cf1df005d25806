// Package reconcile turns a model's free-text reply into either plain text
// or a structured list of recommendation records for rich-card rendering.
//
// The model is instructed (via persona rules) to embed venue
// recommendations as a single fenced ```json block holding an array of
// objects. This package finds that block, validates it against a JSON
// Schema, and coerces each element into a Record with defensive defaults.
// Anything short of a single well-formed block (no fence, several fences,
// parse failure, schema violation) degrades to plain text: structured
// rendering is a bonus, never a requirement, and the caller then renders
// the raw reply verbatim.
package reconcile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// unknownName replaces a missing or empty record name.
	unknownName = "이름 미상"
	// unknownValue marks missing rating/price/highlight fields.
	unknownValue = "정보 없음"

	// maxMapURLLen is the platform card link-length limit. Longer URLs are
	// replaced by a constructed search link.
	maxMapURLLen = 1000

	// searchURLBase is the fallback map-search link prefix; the record name
	// is appended path-escaped.
	searchURLBase = "https://map.naver.com/v5/search/"
)

// recordsSchema constrains the fenced array before coercion: an array of
// objects whose known fields, when present, are scalars. Extra fields are
// tolerated; the model occasionally invents them.
const recordsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "name":      {"type": ["string", "null"]},
      "rating":    {"type": ["string", "number", "null"]},
      "price":     {"type": ["string", "null"]},
      "highlight": {"type": ["string", "null"]},
      "mapUrl":    {"type": ["string", "null"]}
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("records.json", recordsSchema)

// Record is one recommendation coerced from the structured block.
// Produced transiently; never persisted.
type Record struct {
	Name      string
	Rating    string
	Price     string
	Highlight string
	MapURL    string
}

// Reply is the structured interpretation of a model reply.
type Reply struct {
	// Lead is the free text surrounding the fenced block, trimmed.
	// May be empty when the reply was only the block.
	Lead string
	// Records are the coerced array elements in original order.
	Records []Record
}

// Reconcile scans rawReply for exactly one fenced structured block and
// parses it. Returns nil when the reply should be rendered verbatim as
// plain text; absence or malformation of the block is expected and benign.
func Reconcile(rawReply string) *Reply {
	inner, outside, ok := extractFence(rawReply)
	if !ok {
		return nil
	}

	var elems []map[string]any
	if err := json.Unmarshal([]byte(inner), &elems); err != nil {
		return nil
	}

	// Schema validation needs the generically decoded document.
	var doc any
	if err := json.Unmarshal([]byte(inner), &doc); err != nil {
		return nil
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil
	}

	records := make([]Record, 0, len(elems))
	for _, e := range elems {
		records = append(records, coerce(e))
	}

	return &Reply{Lead: strings.TrimSpace(outside), Records: records}
}

// extractFence returns the content of the single triple-backtick block in s
// plus the text outside it. ok is false when there is no block, more than
// one, or the fence never closes. An optional language tag on the opening
// fence line (e.g. "json") is discarded.
func extractFence(s string) (inner, outside string, ok bool) {
	const fence = "```"

	first := strings.Index(s, fence)
	if first == -1 {
		return "", "", false
	}
	rest := s[first+len(fence):]
	closing := strings.Index(rest, fence)
	if closing == -1 {
		return "", "", false
	}
	after := rest[closing+len(fence):]
	if strings.Contains(after, fence) {
		// More than one fenced block is ambiguous; render as plain text.
		return "", "", false
	}

	inner = rest[:closing]
	// Drop the language tag: everything on the opening fence's own line.
	if nl := strings.IndexByte(inner, '\n'); nl != -1 {
		tag := strings.TrimSpace(inner[:nl])
		if tag == "" || isFenceTag(tag) {
			inner = inner[nl+1:]
		}
	}

	outside = s[:first] + "\n" + after
	return inner, outside, true
}

// isFenceTag reports whether the opening-fence annotation marks structured
// data rather than being part of the payload.
func isFenceTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "json", "json5", "javascript":
		return true
	}
	return false
}

// coerce builds a Record from one array element with defensive defaults.
func coerce(e map[string]any) Record {
	r := Record{
		Name:      stringField(e, "name", unknownName),
		Rating:    scalarField(e, "rating", unknownValue),
		Price:     stringField(e, "price", unknownValue),
		Highlight: stringField(e, "highlight", unknownValue),
	}
	r.MapURL = sanitizeMapURL(stringField(e, "mapUrl", ""), r.Name)
	return r
}

func stringField(e map[string]any, key, fallback string) string {
	v, present := e[key]
	if !present || v == nil {
		return fallback
	}
	s, isString := v.(string)
	if !isString || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// scalarField accepts strings and numbers (ratings arrive as either).
func scalarField(e map[string]any, key, fallback string) string {
	v, present := e[key]
	if !present || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return fallback
		}
		return t
	case float64:
		return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", t), "0"), ".")
	}
	return fallback
}

// sanitizeMapURL validates raw as an absolute http(s) URL within the card
// link-length limit. On any failure it constructs a map-search link from
// the record name instead, truncated to the same limit.
func sanitizeMapURL(raw, name string) string {
	if raw != "" && len(raw) <= maxMapURLLen {
		if u, err := url.Parse(raw); err == nil &&
			(u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return raw
		}
	}
	fallback := searchURLBase + url.PathEscape(name)
	if len(fallback) > maxMapURLLen {
		fallback = fallback[:maxMapURLLen]
	}
	return fallback
}
