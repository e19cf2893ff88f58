package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adilbekov/autoreel/internal/config"
	"github.com/adilbekov/autoreel/internal/genai"
	"github.com/adilbekov/autoreel/internal/models"
	"github.com/adilbekov/autoreel/pkg/util"
)

// ChannelRegistry supplies the channels a cycle acts on.
type ChannelRegistry interface {
	ListDue(now time.Time) ([]models.Channel, error)
	UpdateNextRun(channelID uint, next time.Time) error
}

// JobStore persists the generation artifacts a cycle produces.
type JobStore interface {
	CreateJob(job *models.GenerationJob) error
}

// Generator is the slice of the generation pipeline the cycle consumes.
type Generator interface {
	GenerateIdeas(ctx context.Context, ch *models.Channel, theme string, count int) ([]genai.Idea, error)
	GenerateVeoPrompt(ctx context.Context, ch *models.Channel, idea genai.Idea) (*genai.PromptResult, error)
	GenerateTitle(ctx context.Context, prompt, channelName, language string) (string, error)
}

// AutomationService runs one unattended generation cycle across all due
// channels, leaving a queryable audit trail behind. A failure is fatal only
// for the channel it occurred on; the cycle itself always runs to completion.
type AutomationService struct {
	cfg      *config.AutomationConfig
	store    RunStore
	jobs     JobStore
	channels ChannelRegistry
	pipeline Generator
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewAutomationService(cfg *config.AutomationConfig, store RunStore, jobs JobStore, channels ChannelRegistry, pipeline Generator, logger *zap.Logger) *AutomationService {
	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil || interval <= 0 {
		interval = time.Hour
	}

	return &AutomationService{
		cfg:      cfg,
		store:    store,
		jobs:     jobs,
		channels: channels,
		pipeline: pipeline,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// RunCycle executes one automation cycle. It never returns an error: every
// outcome, good or bad, ends up in the run ledger.
func (a *AutomationService) RunCycle(ctx context.Context, invokedAt time.Time) {
	now := a.now()

	channels, listErr := a.channels.ListDue(now)

	ledger := OpenLedger(a.store, a.logger, a.cfg.Timezone, len(channels), &invokedAt)
	a.logger.Info("Automation cycle started",
		zap.String("run_id", ledger.RunID()),
		zap.Int("channels_planned", len(channels)))

	if listErr != nil {
		ledger.RecordEvent(models.LevelError, models.StepSelectChannels,
			fmt.Sprintf("failed to list due channels: %v", listErr))
		ledger.Finish()
		return
	}

	ledger.RecordEvent(models.LevelInfo, models.StepSelectChannels,
		fmt.Sprintf("selected %d channels for processing", len(channels)))

	for i := range channels {
		a.processChannel(ctx, ledger, &channels[i])
	}

	ledger.Finish()
}

func (a *AutomationService) processChannel(ctx context.Context, ledger *RunLedger, ch *models.Channel) {
	if ch.IdeaPromptTemplate == "" || ch.VideoPromptTemplate == "" {
		ledger.RecordEvent(models.LevelWarn, models.StepChannelCheck,
			"channel is missing prompt templates, skipping",
			WithChannel(ch.ID, ch.Name))
		return
	}

	ideas, err := a.pipeline.GenerateIdeas(ctx, ch, "", a.cfg.IdeasPerChannel)
	if err != nil {
		ledger.RecordEvent(models.LevelError, models.StepGenerateIdea,
			fmt.Sprintf("idea generation failed: %v", err),
			WithChannel(ch.ID, ch.Name))
		return
	}
	ledger.RecordEvent(models.LevelInfo, models.StepGenerateIdea,
		fmt.Sprintf("generated %d ideas", len(ideas)),
		WithChannel(ch.ID, ch.Name),
		WithDetails(map[string]any{"first_idea": ideas[0].Title}))

	idea := ideas[0]

	result, err := a.pipeline.GenerateVeoPrompt(ctx, ch, idea)
	if err != nil {
		ledger.RecordEvent(models.LevelError, models.StepGeneratePrompt,
			fmt.Sprintf("prompt generation failed: %v", err),
			WithChannel(ch.ID, ch.Name),
			WithDetails(map[string]any{"idea_id": idea.ID, "idea_title": idea.Title}))
		return
	}
	ledger.RecordEvent(models.LevelInfo, models.StepGeneratePrompt,
		"veo prompt generated",
		WithChannel(ch.ID, ch.Name))

	title := util.SanitizeTitle(result.VideoTitle)
	if title == "" {
		// Extraction fell all the way through; ask for a title directly.
		title, err = a.pipeline.GenerateTitle(ctx, result.VeoPrompt, ch.Name, ch.Language)
		if err != nil {
			ledger.RecordEvent(models.LevelWarn, models.StepGeneratePrompt,
				fmt.Sprintf("standalone title generation failed: %v", err),
				WithChannel(ch.ID, ch.Name))
			title = idea.Title
		}
	}

	job := &models.GenerationJob{
		RunID:      ledger.RunID(),
		ChannelID:  ch.ID,
		IdeaTitle:  idea.Title,
		VeoPrompt:  result.VeoPrompt,
		VideoTitle: title,
		Status:     "pending",
	}
	if err := a.jobs.CreateJob(job); err != nil {
		ledger.RecordEvent(models.LevelError, models.StepCreateJob,
			fmt.Sprintf("failed to create generation job: %v", err),
			WithChannel(ch.ID, ch.Name))
		return
	}
	ledger.IncrementJobsCreated()
	ledger.RecordEvent(models.LevelInfo, models.StepCreateJob,
		"generation job created",
		WithChannel(ch.ID, ch.Name),
		WithDetails(map[string]any{"job_id": job.ID, "video_title": title}))

	next := a.now().Add(a.interval)
	if err := a.channels.UpdateNextRun(ch.ID, next); err != nil {
		ledger.RecordEvent(models.LevelWarn, models.StepUpdateChannelNextRun,
			fmt.Sprintf("failed to advance next run: %v", err),
			WithChannel(ch.ID, ch.Name))
	} else {
		ledger.RecordEvent(models.LevelInfo, models.StepUpdateChannelNextRun,
			fmt.Sprintf("next run scheduled for %s", next.Format(time.RFC3339)),
			WithChannel(ch.ID, ch.Name))
	}

	ledger.IncrementChannelsProcessed()
}
