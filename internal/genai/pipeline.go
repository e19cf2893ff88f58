package genai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adilbekov/autoreel/internal/models"
	"github.com/adilbekov/autoreel/pkg/util"
)

const (
	defaultIdeaCount = 5
	maxIdeaCount     = 10

	// Creativity-biased for ideation, determinism-biased for prompt rendering.
	ideaTemperature   = 0.9
	promptTemperature = 0.4
	titleTemperature  = 0.7
)

const jsonArrayInstruction = "\n\nRespond as JSON: an object with an \"ideas\" array, " +
	"where each element has \"title\" and \"description\" fields."

const ideaSystemPrompt = "You are a creative director for short-form video channels. " +
	"You produce concise, original video concepts."

const promptSystemPromptFormat = "You are an expert at writing prompts for the Veo video " +
	"generation model. Respond as JSON with the fields \"veo_prompt\" and \"video_title\". " +
	"Write both the prompt and the title in %s."

// Pipeline builds requests from channel templates, calls the generation
// service and normalizes the output into domain values.
type Pipeline struct {
	client Completer
	logger *zap.Logger
	now    func() time.Time
}

func NewPipeline(client Completer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateIdeas asks the service for up to count video ideas built from the
// channel's idea template, optionally steered by a free-text theme.
func (p *Pipeline) GenerateIdeas(ctx context.Context, ch *models.Channel, theme string, count int) ([]Idea, error) {
	if count <= 0 {
		count = defaultIdeaCount
	}
	if count > maxIdeaCount {
		count = maxIdeaCount
	}

	prompt := renderTemplate(ch.IdeaPromptTemplate, map[string]string{
		"{{DURATION}}":    strconv.Itoa(ch.DurationSeconds),
		"{{LANGUAGE}}":    languageName(ch.Language),
		"{{DESCRIPTION}}": ch.Description,
	})
	if theme != "" {
		prompt += "\n\nTheme: " + theme
	}
	if !strings.Contains(strings.ToLower(prompt), "json") {
		prompt += jsonArrayInstruction
	}

	raw, err := p.client.Complete(ctx, Request{
		System:      ideaSystemPrompt,
		Prompt:      prompt,
		Temperature: ideaTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("idea generation failed: %w", err)
	}

	ideas, err := ExtractIdeas(raw, count, p.now())
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Ideas generated",
		zap.String("channel", ch.Name),
		zap.Int("count", len(ideas)))

	return ideas, nil
}

// GenerateVeoPrompt turns an idea into a Veo prompt plus video title using the
// channel's video template. Both are requested in the channel's language.
func (p *Pipeline) GenerateVeoPrompt(ctx context.Context, ch *models.Channel, idea Idea) (*PromptResult, error) {
	prompt := renderTemplate(ch.VideoPromptTemplate, map[string]string{
		"{{IDEA_TITLE}}":       idea.Title,
		"{{IDEA_DESCRIPTION}}": idea.Description,
		"{{DURATION}}":         strconv.Itoa(ch.DurationSeconds),
		"{{LANGUAGE}}":         languageName(ch.Language),
	})

	raw, err := p.client.Complete(ctx, Request{
		System:      fmt.Sprintf(promptSystemPromptFormat, languageName(ch.Language)),
		Prompt:      prompt,
		Temperature: promptTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("prompt generation failed: %w", err)
	}

	return ExtractPrompt(raw, idea)
}

// GenerateTitle produces a standalone video title for a prompt. The model is
// constrained to one short plain title; the output is sanitized regardless of
// whether the model complied.
func (p *Pipeline) GenerateTitle(ctx context.Context, prompt, channelName, language string) (string, error) {
	if language == "" {
		language = models.LanguageRU
	}

	var b strings.Builder
	b.WriteString("Come up with exactly one video title, at most 60 characters, ")
	b.WriteString("without quotes, emoji or hashtags, in ")
	b.WriteString(languageName(language))
	b.WriteString(".")
	if channelName != "" {
		b.WriteString(" The video belongs to the channel \"")
		b.WriteString(channelName)
		b.WriteString("\".")
	}
	b.WriteString("\n\nVideo prompt:\n")
	b.WriteString(prompt)

	raw, err := p.client.Complete(ctx, Request{
		Prompt:      b.String(),
		Temperature: titleTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := util.SanitizeTitle(raw)
	if title == "" {
		return "", ErrEmptyCompletion
	}

	return title, nil
}

func renderTemplate(template string, vars map[string]string) string {
	out := template
	for placeholder, value := range vars {
		out = strings.ReplaceAll(out, placeholder, value)
	}
	return out
}

// languageName maps a channel language code to the name used in model
// instructions. Unknown codes fall back to Russian.
func languageName(code string) string {
	switch code {
	case models.LanguageKK:
		return "Kazakh"
	case models.LanguageEN:
		return "English"
	default:
		return "Russian"
	}
}
