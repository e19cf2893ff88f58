package genai

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var parseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestExtractIdeasPlainArray(t *testing.T) {
	raw := `[
		{"title": "Morning routine", "description": "A calm sunrise sequence"},
		{"title": "City rush", "description": "Time lapse of traffic"},
		{"title": "Desert wind", "description": "Dunes shifting at dusk"}
	]`

	ideas, err := ExtractIdeas(raw, 5, parseTime)
	if err != nil {
		t.Fatal(err)
	}

	if len(ideas) != 3 {
		t.Fatalf("got %d ideas, want 3", len(ideas))
	}
	if ideas[0].Title != "Morning routine" {
		t.Errorf("Title = %q, want 'Morning routine'", ideas[0].Title)
	}
	if ideas[1].Description != "Time lapse of traffic" {
		t.Errorf("Description = %q, want 'Time lapse of traffic'", ideas[1].Description)
	}
}

func TestExtractIdeasFromSurroundingProse(t *testing.T) {
	raw := `Sure! Here: [{"title":"A","description":"B"}] Thanks`

	ideas, err := ExtractIdeas(raw, 5, parseTime)
	if err != nil {
		t.Fatal(err)
	}

	if len(ideas) != 1 {
		t.Fatalf("got %d ideas, want 1", len(ideas))
	}
	if ideas[0].Title != "A" || ideas[0].Description != "B" {
		t.Errorf("got {%q, %q}, want {A, B}", ideas[0].Title, ideas[0].Description)
	}
}

func TestExtractIdeasWrappedObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"ideas field", `{"ideas": [{"title": "One"}]}`},
		{"data field", `{"data": [{"title": "One"}]}`},
		{"arbitrary array field", `{"results": [{"title": "One"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ideas, err := ExtractIdeas(tt.raw, 5, parseTime)
			if err != nil {
				t.Fatal(err)
			}
			if len(ideas) != 1 || ideas[0].Title != "One" {
				t.Errorf("got %+v, want one idea titled 'One'", ideas)
			}
		})
	}
}

func TestExtractIdeasFieldFallbacks(t *testing.T) {
	raw := `[
		{"name": "Named", "text": "Body text"},
		{"something_else": true}
	]`

	ideas, err := ExtractIdeas(raw, 5, parseTime)
	if err != nil {
		t.Fatal(err)
	}

	if ideas[0].Title != "Named" {
		t.Errorf("Title = %q, want 'Named' (name fallback)", ideas[0].Title)
	}
	if ideas[0].Description != "Body text" {
		t.Errorf("Description = %q, want 'Body text' (text fallback)", ideas[0].Description)
	}
	if ideas[1].Title != "Idea 2" {
		t.Errorf("Title = %q, want synthesized 'Idea 2'", ideas[1].Title)
	}
	if ideas[1].Description != "" {
		t.Errorf("Description = %q, want empty", ideas[1].Description)
	}
}

func TestExtractIdeasTruncatesToCount(t *testing.T) {
	var items []string
	for i := 0; i < 8; i++ {
		items = append(items, fmt.Sprintf(`{"title": "Idea number %d"}`, i))
	}
	raw := "[" + strings.Join(items, ",") + "]"

	ideas, err := ExtractIdeas(raw, 3, parseTime)
	if err != nil {
		t.Fatal(err)
	}
	if len(ideas) != 3 {
		t.Errorf("got %d ideas, want 3", len(ideas))
	}
}

func TestExtractIdeasDistinctIDs(t *testing.T) {
	raw := `[{"title":"a"},{"title":"b"},{"title":"c"}]`

	ideas, err := ExtractIdeas(raw, 5, parseTime)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, idea := range ideas {
		if seen[idea.ID] {
			t.Fatalf("duplicate id %q", idea.ID)
		}
		seen[idea.ID] = true
	}
}

func TestExtractIdeasFailures(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"garbage", "not json at all", nil},
		{"object without array", `{"title": "no array here"}`, nil},
		{"empty array", `[]`, ErrNoIdeas},
		{"unbalanced bracket", "here is [ nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractIdeas(tt.raw, 5, parseTime)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("got %T, want *ParseError", err)
			}
		})
	}
}

func TestExtractPromptDirectJSON(t *testing.T) {
	raw := `{"veo_prompt": "wide shot of mountains", "video_title": "Mountains"}`

	result, err := ExtractPrompt(raw, Idea{Title: "fallback"})
	if err != nil {
		t.Fatal(err)
	}
	if result.VeoPrompt != "wide shot of mountains" {
		t.Errorf("VeoPrompt = %q", result.VeoPrompt)
	}
	if result.VideoTitle != "Mountains" {
		t.Errorf("VideoTitle = %q", result.VideoTitle)
	}
}

func TestExtractPromptKeyVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"camelCase", `{"veoPrompt": "p", "videoTitle": "t"}`},
		{"short keys", `{"prompt": "p", "title": "t"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractPrompt(tt.raw, Idea{})
			if err != nil {
				t.Fatal(err)
			}
			if result.VeoPrompt != "p" || result.VideoTitle != "t" {
				t.Errorf("got {%q, %q}, want {p, t}", result.VeoPrompt, result.VideoTitle)
			}
		})
	}
}

func TestExtractPromptPatternFallback(t *testing.T) {
	raw := `Of course, here is the result:
"veo_prompt": "slow pan across a frozen lake",
"video_title": "Frozen Lake"
Hope that helps!`

	result, err := ExtractPrompt(raw, Idea{})
	if err != nil {
		t.Fatal(err)
	}
	if result.VeoPrompt != "slow pan across a frozen lake" {
		t.Errorf("VeoPrompt = %q", result.VeoPrompt)
	}
	if result.VideoTitle != "Frozen Lake" {
		t.Errorf("VideoTitle = %q", result.VideoTitle)
	}
}

func TestExtractPromptUnquotedFallback(t *testing.T) {
	raw := "prompt: a dog running through tall grass\ntitle: Dog Day"

	result, err := ExtractPrompt(raw, Idea{})
	if err != nil {
		t.Fatal(err)
	}
	if result.VeoPrompt != "a dog running through tall grass" {
		t.Errorf("VeoPrompt = %q", result.VeoPrompt)
	}
	if result.VideoTitle != "Dog Day" {
		t.Errorf("VideoTitle = %q", result.VideoTitle)
	}
}

func TestExtractPromptTitleFallsBackToIdea(t *testing.T) {
	raw := `{"veo_prompt": "some prompt"}`

	result, err := ExtractPrompt(raw, Idea{Title: "Original Idea"})
	if err != nil {
		t.Fatal(err)
	}
	if result.VideoTitle != "Original Idea" {
		t.Errorf("VideoTitle = %q, want 'Original Idea'", result.VideoTitle)
	}
}

func TestExtractPromptFailures(t *testing.T) {
	t.Run("no fields in free text", func(t *testing.T) {
		_, err := ExtractPrompt("nothing useful here", Idea{})
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("got %v, want *ParseError", err)
		}
	})

	t.Run("empty prompt", func(t *testing.T) {
		_, err := ExtractPrompt(`{"veo_prompt": "", "video_title": "t"}`, Idea{})
		if !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("got %v, want ErrEmptyPrompt", err)
		}
	})
}

func TestFirstArraySubstringRespectsStrings(t *testing.T) {
	raw := `noise [{"title": "has ] bracket in string"}] tail`

	sub, ok := firstArraySubstring(raw)
	if !ok {
		t.Fatal("expected a substring")
	}
	if !strings.HasPrefix(sub, "[{") || !strings.HasSuffix(sub, "}]") {
		t.Errorf("substring boundaries wrong: %q", sub)
	}
}
