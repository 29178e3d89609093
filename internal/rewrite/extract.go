package rewrite

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/amirbrooks/focuslist/internal/classify"
)

// ExtractObject returns the first balanced {...} substring of s. Braces
// inside JSON string literals are not counted.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// modelReply is the loosely typed shape of the model's JSON object. Fields
// stay as raw JSON so a wrong type degrades to a default instead of failing
// the whole parse.
type modelReply struct {
	Title   json.RawMessage `json:"title"`
	Tags    json.RawMessage `json:"tags"`
	Urgency json.RawMessage `json:"urgency"`
	Due     json.RawMessage `json:"due"`
}

func parseReply(text string) (*modelReply, error) {
	obj, ok := ExtractObject(text)
	if !ok {
		return nil, parsef(nil, "no JSON object in model output")
	}
	var reply modelReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return nil, parsef(err, "decode model output")
	}
	return &reply, nil
}

func (r *modelReply) title() string {
	var s string
	if json.Unmarshal(r.Title, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (r *modelReply) tags() []string {
	var raw []json.RawMessage
	if json.Unmarshal(r.Tags, &raw) != nil {
		return []string{}
	}
	tags := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if json.Unmarshal(item, &s) != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	return tags
}

// urgency returns the numeric urgency clamped to the valid range, or
// ok=false when it is missing or not a number.
func (r *modelReply) urgency() (int, bool) {
	var f float64
	if isNull(r.Urgency) || json.Unmarshal(r.Urgency, &f) != nil {
		return 0, false
	}
	f = math.Max(classify.MinUrgency, math.Min(classify.MaxUrgency, f))
	return int(f), true
}

// due returns the decoded due value: a string, nil, or whatever other JSON
// type the model produced.
func (r *modelReply) due() any {
	if isNull(r.Due) {
		return nil
	}
	var v any
	if json.Unmarshal(r.Due, &v) != nil {
		return nil
	}
	return v
}

func isNull(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v == "" || v == "null"
}
