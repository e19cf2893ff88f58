package genai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Idea is a candidate content concept recovered from model output. Ideas are
// ephemeral: produced by one generation call and consumed immediately.
type Idea struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PromptResult is the final generation artifact derived from an Idea.
type PromptResult struct {
	VeoPrompt  string `json:"veo_prompt"`
	VideoTitle string `json:"video_title"`
}

var (
	promptQuotedRegex   = regexp.MustCompile(`(?i)"?(?:veo_?prompt|prompt)"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	promptUnquotedRegex = regexp.MustCompile(`(?i)"?(?:veo_?prompt|prompt)"?\s*:\s*([^"\r\n][^\r\n,}]*)`)
	titleQuotedRegex    = regexp.MustCompile(`(?i)"?(?:video_?title|title)"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	titleUnquotedRegex  = regexp.MustCompile(`(?i)"?(?:video_?title|title)"?\s*:\s*([^"\r\n][^\r\n,}]*)`)
)

// ExtractIdeas recovers up to count ideas from free-form model text. The text
// is decoded leniently (direct parse, then the first bracket-delimited array
// substring), the idea array is located by shape, and each element is mapped
// with per-field fallbacks. Synthesized ids are unique within one call.
func ExtractIdeas(raw string, count int, now time.Time) ([]Idea, error) {
	if count <= 0 {
		count = 5
	}

	value, err := decodeLoose(raw)
	if err != nil {
		return nil, err
	}

	items, err := locateIdeaArray(value)
	if err != nil {
		return nil, err
	}

	ideas := make([]Idea, 0, count)
	for i, item := range items {
		if len(ideas) >= count {
			break
		}

		obj, _ := item.(map[string]any)

		title := stringField(obj, "title", "name")
		if title == "" {
			title = fmt.Sprintf("Idea %d", i+1)
		}

		ideas = append(ideas, Idea{
			ID:          fmt.Sprintf("%d-%d", now.UnixMilli(), i+1),
			Title:       title,
			Description: stringField(obj, "description", "text"),
		})
	}

	if len(ideas) == 0 {
		return nil, ErrNoIdeas
	}

	return ideas, nil
}

// ExtractPrompt recovers a prompt/title pair from free-form model text. When
// the text is not valid JSON, two independent pattern extractions (tolerating
// quoted and unquoted value forms) must both succeed. The title falls back to
// the originating idea's title.
func ExtractPrompt(raw string, idea Idea) (*PromptResult, error) {
	fields := map[string]any{}

	var value any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &value); err == nil {
		if obj, ok := value.(map[string]any); ok {
			fields = obj
		}
	} else {
		prompt, promptOK := extractField(raw, promptQuotedRegex, promptUnquotedRegex)
		title, titleOK := extractField(raw, titleQuotedRegex, titleUnquotedRegex)
		if !promptOK || !titleOK {
			return nil, &ParseError{Reason: "prompt fields not found in response text"}
		}
		fields["veo_prompt"] = prompt
		fields["video_title"] = title
	}

	prompt := stringField(fields, "veo_prompt", "veoPrompt", "prompt")
	title := stringField(fields, "video_title", "videoTitle", "title")
	if title == "" {
		title = idea.Title
	}

	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	return &PromptResult{VeoPrompt: prompt, VideoTitle: title}, nil
}

// decodeLoose parses the full text as JSON, falling back to the first
// bracket-delimited array substring.
func decodeLoose(raw string) (any, error) {
	raw = strings.TrimSpace(raw)

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value, nil
	}

	if sub, ok := firstArraySubstring(raw); ok {
		if err := json.Unmarshal([]byte(sub), &value); err == nil {
			return value, nil
		}
	}

	return nil, &ParseError{Reason: "unrecognized response shape"}
}

// firstArraySubstring returns the first balanced [...] substring of the text,
// respecting string literals and escapes.
func firstArraySubstring(raw string) (string, bool) {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '[':
			if !inString {
				depth++
			}
		case ']':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// locateIdeaArray finds the array of idea-like objects in a decoded value: the
// value itself, an "ideas" field, a "data" field, or the first array-valued
// field (keys visited in sorted order so the fallback is deterministic).
func locateIdeaArray(value any) ([]any, error) {
	if items, ok := value.([]any); ok {
		return items, nil
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: "array not found"}
	}

	for _, key := range []string{"ideas", "data"} {
		if items, ok := obj[key].([]any); ok {
			return items, nil
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if items, ok := obj[key].([]any); ok {
			return items, nil
		}
	}

	return nil, &ParseError{Reason: "array not found"}
}

// extractField applies the quoted pattern first, then the unquoted one.
func extractField(raw string, quoted, unquoted *regexp.Regexp) (string, bool) {
	if m := quoted.FindStringSubmatch(raw); m != nil {
		return unescapeJSONString(m[1]), true
	}
	if m := unquoted.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
